package ratelimit

import (
	"errors"
	"slices"
	"time"

	"github.com/Proton-105/profile-service/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the key (user id or client IP) bypasses rate limits.
func (r *Rules) IsWhitelisted(key string) bool {
	return slices.Contains(r.config.Whitelist, key)
}

// GetAuthLimit returns the per-IP rule for the login endpoints.
func (r *Rules) GetAuthLimit() (int, time.Duration, error) {
	return parseRule(r.config.Auth)
}

// GetPerUserLimit returns the per-user rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerUser)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
