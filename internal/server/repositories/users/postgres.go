// Package users provides the PostgreSQL-backed repository for user accounts.
package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openheritage/memoryvault/internal/common"
	"github.com/openheritage/memoryvault/internal/dbx"
	"github.com/openheritage/memoryvault/internal/server/models"
)

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user row. A duplicate id maps to ErrDuplicateID,
// a duplicate email or username to ErrConstraintViolation.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	background, err := json.Marshal(emptyIfNil(user.CulturalBackground))
	if err != nil {
		return nil, fmt.Errorf("marshal cultural background: %w", err)
	}

	query := `
		INSERT INTO users (id, email, username, verified, verification_level, cultural_background)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.Verified, user.VerificationLevel, background).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}

	return user, nil
}

// GetByID returns the user with the given identifier, or ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, username, verified, verification_level, cultural_background, created_at, updated_at
		FROM users WHERE id = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername returns the user with the given username, or ErrNotFound.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, email, username, verified, verification_level, cultural_background, created_at, updated_at
		FROM users WHERE username = $1
	`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// UpdateProfile rewrites the mutable profile fields. The identifier is the
// lookup key and is never changed.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, user *models.User) (*models.User, error) {
	background, err := json.Marshal(emptyIfNil(user.CulturalBackground))
	if err != nil {
		return nil, fmt.Errorf("marshal cultural background: %w", err)
	}

	query := `
		UPDATE users
		SET email = $2, username = $3, verified = $4, verification_level = $5,
		    cultural_background = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.Verified, user.VerificationLevel, background).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var background []byte
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.Verified,
		&user.VerificationLevel, &background, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(background, &user.CulturalBackground); err != nil {
		return nil, fmt.Errorf("unmarshal cultural background: %w", err)
	}
	return user, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == "users_pkey" {
				return fmt.Errorf("%w: %s", common.ErrDuplicateID, pgErr.ConstraintName)
			}
			return fmt.Errorf("%w: %s", common.ErrConstraintViolation, pgErr.ConstraintName)
		case "23503", "23514": // foreign_key_violation, check_violation
			return fmt.Errorf("%w: %s", common.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}
