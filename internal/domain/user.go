package domain

import "time"

const (
	MinDifficulty = 1
	MaxDifficulty = 3
	// DefaultDifficulty is used when no configured default is available.
	DefaultDifficulty = 2
)

// User represents an application user stored in the database.
// ExternalID is the only identifier exposed outside the service.
type User struct {
	ID              int64
	ExternalID      string
	Name            string
	ProfileImage    string
	ProviderID      string
	DifficultyLevel *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasDifficulty reports whether the user picked a difficulty level.
func (u *User) HasDifficulty() bool {
	return u != nil && u.DifficultyLevel != nil
}

// ExternalIdentity is a verified identity returned by an OAuth2 provider.
type ExternalIdentity struct {
	Provider        string
	ProviderID      string
	DisplayName     string
	ProfileImageURL string
}

// ProfileUpdate carries optional profile edits. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name         *string
	ProfileImage *string
}

// ValidDifficulty reports whether level is an accepted difficulty.
func ValidDifficulty(level int) bool {
	return level >= MinDifficulty && level <= MaxDifficulty
}
