// Package preference implements cache-aside reads and store-then-cache writes of
// user preferences, emitting one change event per successful write.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/events"
	"github.com/Proton-105/profile-service/internal/repository"
	"github.com/Proton-105/profile-service/pkg/metrics"
)

const errInvalidDifficulty = "difficulty level must be 1, 2, or 3"

// Cache is the derived preference store. Errors are treated as misses.
type Cache interface {
	GetDifficulty(ctx context.Context, userID string) (int, bool, error)
	SetDifficulty(ctx context.Context, userID string, level int) error
	GetCategories(ctx context.Context, userID string) (domain.CategoryMap, bool, error)
	SetCategories(ctx context.Context, userID string, categories domain.CategoryMap) error
}

// Settings is the full preference view of a user.
type Settings struct {
	User            *domain.User
	DifficultyLevel *int
	Categories      domain.CategoryMap
}

// SetupStatus tells whether a user finished onboarding: a difficulty and at least one category.
type SetupStatus struct {
	User              *domain.User
	HasCompletedSetup bool
}

type Service struct {
	users             repository.UserRepository
	categories        repository.CategoryRepository
	cache             Cache
	publisher         events.Publisher
	log               *slog.Logger
	defaultDifficulty atomic.Int32
}

func NewService(
	users repository.UserRepository,
	categories repository.CategoryRepository,
	cache Cache,
	publisher events.Publisher,
	defaultDifficulty int,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if publisher == nil {
		publisher = events.NewNoopPublisher(log)
	}

	s := &Service{
		users:      users,
		categories: categories,
		cache:      cache,
		publisher:  publisher,
		log:        log.With(slog.String("component", "preference")),
	}
	s.SetDefaultDifficulty(defaultDifficulty)

	return s
}

// SetDefaultDifficulty changes the level used when no difficulty is known.
// Out-of-range values fall back to domain.DefaultDifficulty.
func (s *Service) SetDefaultDifficulty(level int) {
	if !domain.ValidDifficulty(level) {
		level = domain.DefaultDifficulty
	}
	s.defaultDifficulty.Store(int32(level))
}

func (s *Service) DefaultDifficulty() int {
	return int(s.defaultDifficulty.Load())
}

// GetDifficulty returns the user's level, or nil when the user never picked one.
func (s *Service) GetDifficulty(ctx context.Context, userID string) (*int, error) {
	if level, ok := s.cachedDifficulty(ctx, userID); ok {
		return &level, nil
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.difficultyFromUser(ctx, user), nil
}

// GetCategories returns the user's selections grouped by major category.
// A user without selections gets an empty map.
func (s *Service) GetCategories(ctx context.Context, userID string) (domain.CategoryMap, error) {
	if categories, ok := s.cachedCategories(ctx, userID); ok {
		return categories, nil
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.categoriesFromStore(ctx, user)
}

// GetSettings returns profile, difficulty and categories in one view.
func (s *Service) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	difficulty := s.difficultyFromUser(ctx, user)

	categories, ok := s.cachedCategories(ctx, userID)
	if !ok {
		categories, err = s.categoriesFromStore(ctx, user)
		if err != nil {
			return nil, err
		}
	}

	return &Settings{User: user, DifficultyLevel: difficulty, Categories: categories}, nil
}

func (s *Service) GetSetupStatus(ctx context.Context, userID string) (*SetupStatus, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &SetupStatus{
		User:              settings.User,
		HasCompletedSetup: settings.DifficultyLevel != nil && settings.Categories.Count() > 0,
	}, nil
}

// SetDifficulty validates and stores level, refreshes the cache and publishes a DIFFICULTY event.
// A nil level is rejected like any out-of-range value.
func (s *Service) SetDifficulty(ctx context.Context, userID string, level *int) (*domain.User, error) {
	if level == nil || !domain.ValidDifficulty(*level) {
		return nil, apperrors.NewInvalidArgumentError(errInvalidDifficulty)
	}

	user, err := s.applyDifficulty(ctx, userID, *level)
	if err != nil {
		return nil, err
	}

	categories := s.complementCategories(ctx, user)
	s.publish(ctx, userID, categories, user.DifficultyLevel, domain.EventTypeDifficulty)

	return user, nil
}

// ResetDifficulty sets the configured default level.
func (s *Service) ResetDifficulty(ctx context.Context, userID string) (*domain.User, error) {
	level := s.DefaultDifficulty()
	return s.SetDifficulty(ctx, userID, &level)
}

// SetCategories replaces all selections of the user and publishes a CATEGORIES event.
// Repeated (major, minor) pairs in input are stored once.
func (s *Service) SetCategories(ctx context.Context, userID string, input map[string][]string) (domain.CategoryMap, error) {
	selections, err := s.normalize(userID, input)
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	saved, err := s.applyCategories(ctx, user, selections)
	if err != nil {
		return nil, err
	}

	difficulty := s.complementDifficulty(ctx, user)
	s.publish(ctx, userID, saved, &difficulty, domain.EventTypeCategories)

	return saved, nil
}

// UpdateSettings changes difficulty, categories, or both, and publishes exactly one event.
// Both inputs are validated before anything is written.
func (s *Service) UpdateSettings(ctx context.Context, userID string, level *int, input map[string][]string) (*Settings, error) {
	if level == nil && input == nil {
		return nil, apperrors.NewInvalidArgumentError("difficultyLevel or categories is required")
	}
	if level != nil && !domain.ValidDifficulty(*level) {
		return nil, apperrors.NewInvalidArgumentError(errInvalidDifficulty)
	}

	var selections []domain.CategorySelection
	if input != nil {
		var err error
		if selections, err = s.normalize(userID, input); err != nil {
			return nil, err
		}
	}

	var (
		user *domain.User
		err  error
	)
	if level != nil {
		user, err = s.applyDifficulty(ctx, userID, *level)
	} else {
		user, err = s.loadUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	var categories domain.CategoryMap
	if selections != nil {
		if categories, err = s.applyCategories(ctx, user, selections); err != nil {
			return nil, err
		}
	}

	switch {
	case level != nil && selections != nil:
		s.publish(ctx, userID, categories, level, domain.EventTypeBoth)
	case level != nil:
		categories = s.complementCategories(ctx, user)
		s.publish(ctx, userID, categories, level, domain.EventTypeDifficulty)
	default:
		difficulty := s.complementDifficulty(ctx, user)
		level = &difficulty
		s.publish(ctx, userID, categories, level, domain.EventTypeCategories)
	}

	return &Settings{User: user, DifficultyLevel: user.DifficultyLevel, Categories: categories}, nil
}

func (s *Service) applyDifficulty(ctx context.Context, userID string, level int) (*domain.User, error) {
	user, err := s.users.UpdateDifficulty(ctx, userID, level)
	if err != nil {
		return nil, s.translate("set_difficulty", userID, err)
	}

	if err := s.cache.SetDifficulty(ctx, userID, level); err != nil {
		s.log.Warn("failed to cache difficulty", slog.String("user_id", userID), slog.Any("error", err))
	}

	s.log.Info("difficulty updated", slog.String("user_id", userID), slog.Int("difficulty", level))
	return user, nil
}

func (s *Service) applyCategories(ctx context.Context, user *domain.User, selections []domain.CategorySelection) (domain.CategoryMap, error) {
	if err := s.categories.ReplaceForUser(ctx, user.ID, selections); err != nil {
		return nil, s.translate("set_categories", user.ExternalID, err)
	}

	saved := domain.GroupSelections(selections)
	if err := s.cache.SetCategories(ctx, user.ExternalID, saved); err != nil {
		s.log.Warn("failed to cache categories", slog.String("user_id", user.ExternalID), slog.Any("error", err))
	}

	s.log.Info("categories updated", slog.String("user_id", user.ExternalID), slog.Int("count", len(selections)))
	return saved, nil
}

func (s *Service) normalize(userID string, input map[string][]string) ([]domain.CategorySelection, error) {
	selections, duplicates, err := domain.NormalizeSelections(input)
	if err != nil {
		return nil, apperrors.NewInvalidArgumentError(err.Error())
	}

	for _, dup := range duplicates {
		s.log.Warn("duplicate category dropped",
			slog.String("user_id", userID),
			slog.String("major", string(dup.Major)),
			slog.String("minor", string(dup.Minor)),
		)
	}

	return selections, nil
}

// complementCategories fetches categories for a DIFFICULTY event: cache, then store.
// A store failure here only loses the field in the event.
func (s *Service) complementCategories(ctx context.Context, user *domain.User) domain.CategoryMap {
	if categories, ok := s.cachedCategories(ctx, user.ExternalID); ok {
		return categories
	}

	categories, err := s.categoriesFromStore(ctx, user)
	if err != nil {
		s.log.Warn("categories unavailable for event", slog.String("user_id", user.ExternalID), slog.Any("error", err))
		return nil
	}

	return categories
}

// complementDifficulty picks the difficulty for a CATEGORIES event: cache, then the
// loaded row, then the configured default.
func (s *Service) complementDifficulty(ctx context.Context, user *domain.User) int {
	if level, ok := s.cachedDifficulty(ctx, user.ExternalID); ok {
		return level
	}
	if user.DifficultyLevel != nil {
		return *user.DifficultyLevel
	}
	return s.DefaultDifficulty()
}

func (s *Service) cachedDifficulty(ctx context.Context, userID string) (int, bool) {
	level, ok, err := s.cache.GetDifficulty(ctx, userID)
	if err != nil {
		return 0, false
	}
	return level, ok
}

func (s *Service) cachedCategories(ctx context.Context, userID string) (domain.CategoryMap, bool) {
	categories, ok, err := s.cache.GetCategories(ctx, userID)
	if err != nil {
		return nil, false
	}
	return categories, ok
}

func (s *Service) difficultyFromUser(ctx context.Context, user *domain.User) *int {
	if user.DifficultyLevel == nil {
		return nil
	}

	level := *user.DifficultyLevel
	if err := s.cache.SetDifficulty(ctx, user.ExternalID, level); err != nil {
		s.log.Warn("failed to cache difficulty", slog.String("user_id", user.ExternalID), slog.Any("error", err))
	}

	return &level
}

func (s *Service) categoriesFromStore(ctx context.Context, user *domain.User) (domain.CategoryMap, error) {
	selections, err := s.categories.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, s.translate("get_categories", user.ExternalID, err)
	}

	categories := domain.GroupSelections(selections)
	if err := s.cache.SetCategories(ctx, user.ExternalID, categories); err != nil {
		s.log.Warn("failed to cache categories", slog.String("user_id", user.ExternalID), slog.Any("error", err))
	}

	return categories, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByExternalID(ctx, userID)
	if err != nil {
		return nil, s.translate("load_user", userID, err)
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, userID string, categories domain.CategoryMap, difficulty *int, eventType domain.EventType) {
	metrics.RecordPreferenceUpdate(string(eventType))
	s.publisher.Publish(ctx, userID, categories, difficulty, eventType)
}

func (s *Service) translate(operation, userID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError("user not found")
	}

	s.log.Error("preference operation failed",
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Any("error", err),
	)
	return fmt.Errorf("%s: %w", operation, err)
}
