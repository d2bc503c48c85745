// Package auth runs the OAuth2 login flow: provider redirect, callback, user resolution, token issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/oauth"
	"github.com/Proton-105/profile-service/internal/token"
	"github.com/Proton-105/profile-service/pkg/metrics"
)

type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) error
}

type UserResolver interface {
	ResolveOrCreate(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error)
}

type TokenIssuer interface {
	Issue(user *domain.User, provider string) (token.Issued, error)
}

// Login is the outcome of a successful callback.
type Login struct {
	User  *domain.User
	Token token.Issued
}

type Service struct {
	provider oauth.Provider
	states   StateStore
	users    UserResolver
	tokens   TokenIssuer
	log      *slog.Logger
}

func NewService(provider oauth.Provider, states StateStore, users UserResolver, tokens TokenIssuer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		states:   states,
		users:    users,
		tokens:   tokens,
		log:      log.With(slog.String("component", "auth"), slog.String("provider", provider.Name())),
	}
}

// LoginURL returns the provider authorization URL bound to a fresh one-time state.
func (s *Service) LoginURL(ctx context.Context) (string, error) {
	state, err := s.states.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("start login: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// HandleCallback validates the callback, resolves the user and issues a session token.
// providerErr is the `error` query parameter the provider sends when the user declines.
func (s *Service) HandleCallback(ctx context.Context, code, state, providerErr string) (*Login, error) {
	if providerErr != "" {
		return nil, s.reject("provider returned an error", errors.New(providerErr))
	}

	if err := s.states.Consume(ctx, state); err != nil {
		if errors.Is(err, oauth.ErrInvalidState) {
			return nil, s.reject("invalid login state", err)
		}
		metrics.RecordLogin(s.provider.Name(), "error")
		return nil, fmt.Errorf("check login state: %w", err)
	}

	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, s.reject("login with provider failed", err)
	}

	user, err := s.users.ResolveOrCreate(ctx, identity)
	if err != nil {
		metrics.RecordLogin(s.provider.Name(), "error")
		return nil, err
	}

	issued, err := s.tokens.Issue(user, s.provider.Name())
	if err != nil {
		metrics.RecordLogin(s.provider.Name(), "error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.RecordLogin(s.provider.Name(), "success")
	s.log.Info("login succeeded", slog.String("user_id", user.ExternalID))

	return &Login{User: user, Token: issued}, nil
}

func (s *Service) reject(msg string, cause error) error {
	metrics.RecordLogin(s.provider.Name(), "rejected")
	s.log.Warn("login rejected", slog.String("reason", msg), slog.Any("error", cause))
	return apperrors.WrapUnauthenticated(msg, cause)
}
