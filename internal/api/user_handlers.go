package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/middleware"
)

// bindJSON decodes the request body, turning decode failures into InvalidArgument.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, errDifficultyFormat) {
			msg = errDifficultyFormat.Error()
		}
		s.fail(c, apperrors.NewInvalidArgumentError(msg))
		return false
	}
	return true
}

func (s *Server) getProfile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	user, err := s.deps.Users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		UserID:          user.ExternalID,
		Name:            user.Name,
		ProfileImage:    user.ProfileImage,
		DifficultyLevel: user.DifficultyLevel,
		CreatedAt:       user.CreatedAt,
	})
}

func (s *Server) updateProfile(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req profileRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.deps.Users.UpdateProfile(c.Request.Context(), userID, domain.ProfileUpdate{
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, profileUpdateResponse{
		Success:      true,
		Message:      s.t(c).T("message.profile_updated"),
		UserID:       user.ExternalID,
		Name:         user.Name,
		ProfileImage: user.ProfileImage,
	})
}

func (s *Server) getCategories(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	categories, err := s.deps.Preferences.GetCategories(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if categories == nil {
		categories = domain.CategoryMap{}
	}

	c.JSON(http.StatusOK, categoriesResponse{UserID: userID, Categories: categories})
}

func (s *Server) getSettings(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	settings, err := s.deps.Preferences.GetSettings(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

func (s *Server) updateSettings(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req settingsRequest
	if !s.bindJSON(c, &req) {
		return
	}

	settings, err := s.deps.Preferences.UpdateSettings(c.Request.Context(), userID, req.DifficultyLevel.Value, req.Categories)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := newSettingsResponse(settings)
	resp.Message = s.t(c).T("message.settings_updated")
	c.JSON(http.StatusOK, resp)
}

func (s *Server) setDifficulty(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req difficultyRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.deps.Preferences.SetDifficulty(c.Request.Context(), userID, req.DifficultyLevel.Value)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, difficultyResponse{
		Success:         true,
		Message:         s.t(c).T("message.difficulty_updated"),
		UserID:          user.ExternalID,
		DifficultyLevel: user.DifficultyLevel,
	})
}

func (s *Server) resetDifficulty(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	user, err := s.deps.Preferences.ResetDifficulty(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, difficultyResponse{
		Success:         true,
		Message:         s.t(c).T("message.difficulty_reset"),
		UserID:          user.ExternalID,
		DifficultyLevel: user.DifficultyLevel,
	})
}

func (s *Server) setCategories(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req categoriesRequest
	if !s.bindJSON(c, &req) {
		return
	}

	saved, err := s.deps.Preferences.SetCategories(c.Request.Context(), userID, req.Categories)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, categoriesUpdateResponse{
		Success:    true,
		Message:    s.t(c).T("message.categories_updated"),
		UserID:     userID,
		Categories: saved,
	})
}

func (s *Server) getSetupStatus(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	status, err := s.deps.Preferences.GetSetupStatus(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, setupStatusResponse{
		HasCompletedSetup: status.HasCompletedSetup,
		UserID:            userID,
		Name:              status.User.Name,
		ProfileImage:      status.User.ProfileImage,
	})
}

// tokenInfo answers from the token claims when present and from the store otherwise.
func (s *Server) tokenInfo(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	if claims := middleware.Claims(c); claims != nil && strings.TrimSpace(claims.Name) != "" {
		c.JSON(http.StatusOK, tokenInfoResponse{
			UserID:       userID,
			Name:         claims.Name,
			ProfileImage: claims.ProfileImage,
			ProviderID:   claims.ProviderID,
		})
		return
	}

	user, err := s.deps.Users.GetProfile(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenInfoResponse{
		UserID:       user.ExternalID,
		Name:         user.Name,
		ProfileImage: user.ProfileImage,
		ProviderID:   user.ProviderID,
	})
}

func (s *Server) cacheStatus(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	status, err := s.deps.Cache.Status(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, apperrors.NewExternalAPIError("redis", err))
		return
	}

	resp := cacheStatusResponse{UserID: userID}
	resp.CacheStatus.Difficulty.Cached = status.DifficultyCached
	resp.CacheStatus.Categories.Cached = status.CategoriesCached
	c.JSON(http.StatusOK, resp)
}
