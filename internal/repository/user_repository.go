package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Proton-105/profile-service/internal/domain"
	apperrors "github.com/Proton-105/profile-service/internal/errors"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

const userColumns = `id, user_id, name, profile_image, provider_id, difficulty_level, created_at, updated_at`

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	UpsertByProvider(ctx context.Context, externalID string, identity domain.ExternalIdentity) (*domain.User, error)
	UpdateDifficulty(ctx context.Context, externalID string, level int) (*domain.User, error)
	UpdateProfile(ctx context.Context, externalID string, update domain.ProfileUpdate) (*domain.User, error)
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

// FindByExternalID retrieves a user by the identifier exposed to clients.
func (r *userRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, r.wrap("select user", externalID, err)
	}

	return user, nil
}

// UpsertByProvider creates the user on first login or refreshes name and image on later ones.
// externalID is only used when a new row is inserted.
func (r *userRepository) UpsertByProvider(ctx context.Context, externalID string, identity domain.ExternalIdentity) (*domain.User, error) {
	query := `
		INSERT INTO users (user_id, name, profile_image, provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (provider_id) DO UPDATE
		SET name = EXCLUDED.name,
		    profile_image = EXCLUDED.profile_image,
		    updated_at = NOW()
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query,
		externalID,
		identity.DisplayName,
		nullString(identity.ProfileImageURL),
		identity.ProviderID,
	))
	if err != nil {
		return nil, r.wrap("upsert user", identity.ProviderID, err)
	}

	return user, nil
}

// UpdateDifficulty stores the difficulty level and returns the updated row.
func (r *userRepository) UpdateDifficulty(ctx context.Context, externalID string, level int) (*domain.User, error) {
	query := `
		UPDATE users
		SET difficulty_level = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, externalID, level))
	if err != nil {
		return nil, r.wrap("update difficulty", externalID, err)
	}

	return user, nil
}

// UpdateProfile applies the non-nil fields of update.
func (r *userRepository) UpdateProfile(ctx context.Context, externalID string, update domain.ProfileUpdate) (*domain.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
		    profile_image = COALESCE($3, profile_image),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, externalID, nullStringPtr(update.Name), nullStringPtr(update.ProfileImage)))
	if err != nil {
		return nil, r.wrap("update profile", externalID, err)
	}

	return user, nil
}

func (r *userRepository) wrap(op, key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	if r.log != nil {
		r.log.Error("user query failed", slog.String("op", op), slog.String("key", key), slog.Any("error", err))
	}

	return queryError(op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user         domain.User
		profileImage sql.NullString
		providerID   sql.NullString
		difficulty   sql.NullInt32
	)

	if err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Name,
		&profileImage,
		&providerID,
		&difficulty,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.ProfileImage = profileImage.String
	user.ProviderID = providerID.String
	if difficulty.Valid {
		level := int(difficulty.Int32)
		user.DifficultyLevel = &level
	}

	return &user, nil
}

// queryError maps PostgreSQL integrity errors to client errors.
// Constraint names stay in Message for logs and never reach UserMessage.
func queryError(op string, err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return apperrors.NewDatabaseError(op, err)
	}

	switch pqErr.Code.Name() {
	case "unique_violation":
		appErr := apperrors.NewConflictError("The resource was changed by another request, try again")
		appErr.Message = fmt.Sprintf("%s: constraint %s violated", op, pqErr.Constraint)
		return appErr
	case "check_violation", "string_data_right_truncation":
		appErr := apperrors.NewInvalidArgumentError("A value is outside the allowed range")
		appErr.Message = fmt.Sprintf("%s: %s (%s)", op, pqErr.Code.Name(), pqErr.Constraint)
		return appErr
	default:
		return apperrors.NewDatabaseError(op, err)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
