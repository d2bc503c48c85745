package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/profile-service/internal/domain"
)

// CategoryRepository persists the category selections of users.
type CategoryRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.CategorySelection, error)
	ReplaceForUser(ctx context.Context, userID int64, selections []domain.CategorySelection) error
}

type categoryRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewCategoryRepository(db *sql.DB, log *slog.Logger) CategoryRepository {
	return &categoryRepository{
		db:  db,
		log: log,
	}
}

// ListByUser returns selections in insertion order.
func (r *categoryRepository) ListByUser(ctx context.Context, userID int64) ([]domain.CategorySelection, error) {
	const query = `
		SELECT major_category, minor_category
		FROM user_categories
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, r.fail("list categories", userID, err)
	}
	defer rows.Close()

	var selections []domain.CategorySelection
	for rows.Next() {
		var major, minor string
		if err := rows.Scan(&major, &minor); err != nil {
			return nil, r.fail("scan category", userID, err)
		}
		selections = append(selections, domain.CategorySelection{
			Major: domain.MajorCategory(major),
			Minor: domain.MinorCategory(minor),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("iterate categories", userID, err)
	}

	return selections, nil
}

// ReplaceForUser swaps the full selection set in one transaction.
// The owning users row is locked first so concurrent replacements for one user
// run one after another instead of racing on the unique (user_id, major, minor) constraint.
func (r *categoryRepository) ReplaceForUser(ctx context.Context, userID int64, selections []domain.CategorySelection) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.fail("begin replace categories", userID, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && r.log != nil {
			r.log.Error("rollback error", slog.Int64("user_id", userID), slog.Any("error", rbErr))
		}
	}()

	var locked int64
	if err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return r.fail("lock user", userID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM user_categories WHERE user_id = $1`, userID); err != nil {
		return r.fail("delete categories", userID, err)
	}

	if len(selections) > 0 {
		query, args := buildInsert(userID, selections)
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return r.fail("insert categories", userID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return r.fail("commit categories", userID, err)
	}

	return nil
}

func buildInsert(userID int64, selections []domain.CategorySelection) (string, []any) {
	var (
		sb   strings.Builder
		args = make([]any, 0, len(selections)*3)
	)
	sb.WriteString(`INSERT INTO user_categories (user_id, major_category, minor_category) VALUES `)
	for i, s := range selections {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 3
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, userID, string(s.Major), string(s.Minor))
	}

	return sb.String(), args
}

func (r *categoryRepository) fail(op string, userID int64, err error) error {
	if r.log != nil {
		r.log.Error("category query failed", slog.String("op", op), slog.Int64("user_id", userID), slog.Any("error", err))
	}

	return queryError(op, err)
}
