package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/repository"
)

// MaxNameLength matches the users.name column width in characters.
const MaxNameLength = 100

// Service provides business operations over user profiles.
type Service struct {
	repo repository.UserRepository
	log  *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(repo repository.UserRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// ResolveOrCreate returns the user bound to identity, creating it on first login.
// Name and image are refreshed from the provider on every login. The upsert is a
// single statement, so concurrent first logins of one identity converge on one row.
func (s *Service) ResolveOrCreate(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error) {
	if strings.TrimSpace(identity.ProviderID) == "" {
		return nil, apperrors.NewInvalidArgumentError("provider id is required")
	}

	var user *domain.User
	err := apperrors.WithRetry(ctx, func() error {
		var upsertErr error
		user, upsertErr = s.repo.UpsertByProvider(ctx, uuid.NewString(), identity)
		return upsertErr
	})
	if err != nil {
		s.logError("resolve_or_create", identity.ProviderID, err)
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	s.log.Info("user resolved",
		slog.String("user_id", user.ExternalID),
		slog.String("provider", identity.Provider),
		slog.Bool("created", user.CreatedAt.Equal(user.UpdatedAt)),
	)

	return user, nil
}

// GetProfile returns the stored user.
func (s *Service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.repo.FindByExternalID(ctx, userID)
	if err != nil {
		return nil, s.translate("get_profile", userID, err)
	}

	return user, nil
}

// UpdateProfile changes name and/or profile image. A blank name is ignored.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			update.Name = nil
		} else {
			update.Name = &name
		}
	}
	if update.Name != nil && utf8.RuneCountInString(*update.Name) > MaxNameLength {
		return nil, apperrors.NewInvalidArgumentError(fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}

	if update.Name == nil && update.ProfileImage == nil {
		return s.GetProfile(ctx, userID)
	}

	user, err := s.repo.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, s.translate("update_profile", userID, err)
	}

	s.log.Info("profile updated", slog.String("user_id", userID))

	return user, nil
}

func (s *Service) translate(operation, userID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError("user not found")
	}

	s.logError(operation, userID, err)
	return err
}

func (s *Service) logError(operation, key string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Any("error", err),
	)
}
