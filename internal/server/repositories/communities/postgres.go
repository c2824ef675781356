// Package communities provides the PostgreSQL-backed repository for cultural
// communities and their membership rows.
package communities

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

// PostgresRepository implements community storage over a dbx.DBTX.
// Membership mutations touch two tables, so callers that need atomicity must
// bind the repository to a transaction via dbx.WithTx.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new community row. MemberCount starts at zero regardless
// of the value supplied: the count is derived from membership events only.
func (r *PostgresRepository) Create(ctx context.Context, community *models.CulturalCommunity) (*models.CulturalCommunity, error) {
	focus, err := json.Marshal(emptyIfNil(community.CulturalFocus))
	if err != nil {
		return nil, fmt.Errorf("marshal cultural focus: %w", err)
	}

	var location []byte
	if community.Location != nil {
		location, err = json.Marshal(community.Location)
		if err != nil {
			return nil, fmt.Errorf("marshal location: %w", err)
		}
	}

	query := `
		INSERT INTO cultural_communities (id, name, cultural_focus, location, verified, verification_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING member_count, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		community.ID, community.Name, focus, nullableBytes(location),
		community.Verified, community.VerificationLevel).
		Scan(&community.MemberCount, &community.CreatedAt, &community.UpdatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return community, nil
}

// GetByID returns the community with the given identifier, or ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.CulturalCommunity, error) {
	query := `
		SELECT id, name, cultural_focus, location, member_count, verified, verification_level, created_at, updated_at
		FROM cultural_communities WHERE id = $1
	`
	c := &models.CulturalCommunity{}
	var focus []byte
	var location []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &focus, &location, &c.MemberCount,
		&c.Verified, &c.VerificationLevel, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(focus, &c.CulturalFocus); err != nil {
		return nil, fmt.Errorf("unmarshal cultural focus: %w", err)
	}
	if len(location) > 0 {
		c.Location = &models.Location{}
		if err := json.Unmarshal(location, c.Location); err != nil {
			return nil, fmt.Errorf("unmarshal location: %w", err)
		}
	}
	return c, nil
}

// MembershipsOf returns the ids of every community the user belongs to.
func (r *PostgresRepository) MembershipsOf(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT community_id FROM community_members WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AddMember records a membership and bumps the derived member count. The
// count only moves when a row was actually inserted, so repeated adds for
// the same pair are no-ops.
func (r *PostgresRepository) AddMember(ctx context.Context, communityID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO community_members (community_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		communityID, userID)
	if err != nil {
		return mapPgError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return nil
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE cultural_communities SET member_count = member_count + 1, updated_at = now() WHERE id = $1`,
		communityID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership and decrements the derived member count
// when a row was actually removed.
func (r *PostgresRepository) RemoveMember(ctx context.Context, communityID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM community_members WHERE community_id = $1 AND user_id = $2`,
		communityID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return nil
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE cultural_communities SET member_count = GREATEST(member_count - 1, 0), updated_at = now() WHERE id = $1`,
		communityID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", common.ErrDuplicateID, pgErr.ConstraintName)
		case "23503", "23514":
			return fmt.Errorf("%w: %s", common.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}
