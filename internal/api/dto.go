package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/profile-service/internal/domain"
	"github.com/Proton-105/profile-service/internal/preference"
)

var errDifficultyFormat = errors.New("difficultyLevel must be a number")

// Difficulty accepts a JSON number or a numeric string. Null or an absent field leave Value nil.
type Difficulty struct {
	Value *int
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		d.Value = nil
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errDifficultyFormat
		}
		raw = strings.TrimSpace(s)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return errDifficultyFormat
	}

	level := int(f)
	d.Value = &level
	return nil
}

type difficultyRequest struct {
	DifficultyLevel Difficulty `json:"difficultyLevel"`
}

type categoriesRequest struct {
	Categories map[string][]string `json:"categories"`
}

type settingsRequest struct {
	DifficultyLevel Difficulty          `json:"difficultyLevel"`
	Categories      map[string][]string `json:"categories"`
}

type profileRequest struct {
	Name         *string `json:"name"`
	ProfileImage *string `json:"profileImage"`
}

type profileResponse struct {
	UserID          string    `json:"userId"`
	Name            string    `json:"name"`
	ProfileImage    string    `json:"profileImage"`
	DifficultyLevel *int      `json:"difficultyLevel"`
	CreatedAt       time.Time `json:"createdAt"`
}

type profileUpdateResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage"`
}

type categoriesResponse struct {
	UserID     string             `json:"userId"`
	Categories domain.CategoryMap `json:"categories"`
}

type settingsResponse struct {
	Success         bool               `json:"success"`
	Message         string             `json:"message,omitempty"`
	UserID          string             `json:"userId"`
	Name            string             `json:"name"`
	ProfileImage    string             `json:"profileImage"`
	DifficultyLevel *int               `json:"difficultyLevel"`
	Categories      domain.CategoryMap `json:"categories"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type difficultyResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	UserID          string `json:"userId"`
	DifficultyLevel *int   `json:"difficultyLevel"`
}

type categoriesUpdateResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	UserID     string             `json:"userId"`
	Categories domain.CategoryMap `json:"categories"`
}

type setupStatusResponse struct {
	HasCompletedSetup bool   `json:"hasCompletedSetup"`
	UserID            string `json:"userId"`
	Name              string `json:"name"`
	ProfileImage      string `json:"profileImage"`
}

type tokenInfoResponse struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage"`
	ProviderID   string `json:"providerId"`
}

type cacheEntryStatus struct {
	Cached bool `json:"cached"`
}

type cacheStatusResponse struct {
	UserID      string `json:"userId"`
	CacheStatus struct {
		Difficulty cacheEntryStatus `json:"difficulty"`
		Categories cacheEntryStatus `json:"categories"`
	} `json:"cacheStatus"`
}

type authStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
}

type loginUser struct {
	UserID       string `json:"userId"`
	ProviderID   string `json:"providerId"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      loginUser `json:"user"`
	Redirect  string    `json:"redirect,omitempty"`
	Message   string    `json:"message"`
}

type loginFailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type minorCategoryResponse struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

type majorCategoryResponse struct {
	Code        string                  `json:"code"`
	DisplayName string                  `json:"displayName"`
	Minors      []minorCategoryResponse `json:"minors"`
}

func newSettingsResponse(settings *preference.Settings) settingsResponse {
	resp := settingsResponse{
		Success:         true,
		DifficultyLevel: settings.DifficultyLevel,
		Categories:      settings.Categories,
	}
	if user := settings.User; user != nil {
		resp.UserID = user.ExternalID
		resp.Name = user.Name
		resp.ProfileImage = user.ProfileImage
		resp.CreatedAt = user.CreatedAt
		resp.UpdatedAt = user.UpdatedAt
	}
	if resp.Categories == nil {
		resp.Categories = domain.CategoryMap{}
	}
	return resp
}
