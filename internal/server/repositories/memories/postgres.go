// Package memories provides the PostgreSQL-backed artifact repository.
package memories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openheritage/memoryvault/internal/common"
	"github.com/openheritage/memoryvault/internal/dbx"
	"github.com/openheritage/memoryvault/internal/server/models"
	"github.com/openheritage/memoryvault/internal/server/pagination"
)

const memoryColumns = `id, owner_id, content_type, content_hash, locator, file_size, mime_type,
	cultural_context, tags, significance_score, access_level, is_public, created_at, updated_at`

// PostgresRepository implements artifact storage over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the memory row. A colliding identifier maps to
// ErrDuplicateID (an integrity violation given random generation), a missing
// owner to ErrConstraintViolation.
func (r *PostgresRepository) Create(ctx context.Context, memory *models.Memory) (*models.Memory, error) {
	culturalContext, tags, err := marshalSets(memory.CulturalContext, memory.Tags)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO memories (id, owner_id, content_type, content_hash, locator, file_size, mime_type,
			cultural_context, tags, significance_score, access_level, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		memory.ID, memory.OwnerID, memory.ContentType, memory.ContentHash, memory.Locator,
		memory.FileSize, memory.MimeType, culturalContext, tags, memory.SignificanceScore,
		memory.AccessLevel, memory.IsPublic).
		Scan(&memory.CreatedAt, &memory.UpdatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return memory, nil
}

// SetCommunities replaces the artifact's community association rows. An
// unknown community id maps to ErrConstraintViolation via the foreign key.
func (r *PostgresRepository) SetCommunities(ctx context.Context, memoryID string, communityIDs []string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM memory_communities WHERE memory_id = $1`, memoryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, cid := range communityIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO memory_communities (memory_id, community_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			memoryID, cid)
		if err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

// GetByID returns the memory with community associations populated.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = $1`
	memory, err := scanMemory(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachCommunities(ctx, []*models.Memory{memory}); err != nil {
		return nil, err
	}
	return memory, nil
}

// Update rewrites the owner-mutable metadata fields in one statement. Nil
// fields keep their stored value via COALESCE; is_public is always
// recomputed from the effective access level, never trusted from the caller.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd *models.MemoryUpdate) (*models.Memory, error) {
	var culturalContext, tags []byte
	var err error
	if upd.CulturalContext != nil {
		culturalContext, err = json.Marshal(*upd.CulturalContext)
		if err != nil {
			return nil, fmt.Errorf("marshal cultural context: %w", err)
		}
	}
	if upd.Tags != nil {
		tags, err = json.Marshal(*upd.Tags)
		if err != nil {
			return nil, fmt.Errorf("marshal tags: %w", err)
		}
	}

	query := `
		UPDATE memories
		SET cultural_context = COALESCE($2, cultural_context),
		    tags = COALESCE($3, tags),
		    significance_score = COALESCE($4, significance_score),
		    access_level = COALESCE($5, access_level),
		    is_public = (COALESCE($5, access_level) = 'public'),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + memoryColumns

	memory, err := scanMemory(r.db.QueryRowContext(ctx, query,
		id, nullableBytes(culturalContext), nullableBytes(tags),
		upd.SignificanceScore, upd.AccessLevel))
	if err != nil {
		return nil, err
	}
	if err := r.attachCommunities(ctx, []*models.Memory{memory}); err != nil {
		return nil, err
	}
	return memory, nil
}

// ListByOwner returns the owner's artifacts newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, size int, cur pagination.Cursor) ([]*models.Memory, error) {
	return r.list(ctx, "owner_id = $1", []any{ownerID}, size, cur)
}

// ListByAccessLevel returns artifacts of one access tier newest first.
func (r *PostgresRepository) ListByAccessLevel(ctx context.Context, level string, size int, cur pagination.Cursor) ([]*models.Memory, error) {
	return r.list(ctx, "access_level = $1", []any{level}, size, cur)
}

// ListVisibleTo returns the artifacts the viewer may read: public ones, their
// own, and community-tier ones shared with a community they belong to.
// Anonymous viewers see public artifacts only.
func (r *PostgresRepository) ListVisibleTo(ctx context.Context, viewer Viewer, f Filter, size int, cur pagination.Cursor) ([]*models.Memory, error) {
	var conds []string
	var args []any

	visible := []string{"is_public"}
	if viewer.UserID != "" {
		args = append(args, viewer.UserID)
		visible = append(visible, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(viewer.Memberships) > 0 {
		placeholders := make([]string, 0, len(viewer.Memberships))
		for _, cid := range viewer.Memberships {
			args = append(args, cid)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		visible = append(visible, fmt.Sprintf(
			`(access_level = 'community' AND EXISTS (
				SELECT 1 FROM memory_communities mc
				WHERE mc.memory_id = memories.id AND mc.community_id IN (%s)))`,
			strings.Join(placeholders, ", ")))
	}
	conds = append(conds, "("+strings.Join(visible, " OR ")+")")

	if f.ContentType != "" {
		args = append(args, f.ContentType)
		conds = append(conds, fmt.Sprintf("content_type = $%d", len(args)))
	}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	return r.list(ctx, strings.Join(conds, " AND "), args, size, cur)
}

func (r *PostgresRepository) list(ctx context.Context, where string, args []any, size int, cur pagination.Cursor) ([]*models.Memory, error) {
	if !cur.Zero() {
		args = append(args, cur.CreatedAt, cur.ID)
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, size)

	query := fmt.Sprintf(
		`SELECT %s FROM memories WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		memoryColumns, where, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select memories: %w", err)
	}
	defer rows.Close()

	var result []*models.Memory
	for rows.Next() {
		memory, err := scanMemoryRows(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachCommunities(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) attachCommunities(ctx context.Context, memories []*models.Memory) error {
	if len(memories) == 0 {
		return nil
	}

	byID := make(map[string]*models.Memory, len(memories))
	placeholders := make([]string, 0, len(memories))
	args := make([]any, 0, len(memories))
	for i, m := range memories {
		byID[m.ID] = m
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, m.ID)
	}

	query := fmt.Sprintf(
		`SELECT memory_id, community_id FROM memory_communities WHERE memory_id IN (%s)`,
		strings.Join(placeholders, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to select memory communities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memoryID, communityID string
		if err := rows.Scan(&memoryID, &communityID); err != nil {
			return err
		}
		if m, ok := byID[memoryID]; ok {
			m.Communities = append(m.Communities, communityID)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row *sql.Row) (*models.Memory, error) {
	m, err := scanMemoryRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func scanMemoryRows(s rowScanner) (*models.Memory, error) {
	m := &models.Memory{}
	var culturalContext, tags []byte
	err := s.Scan(&m.ID, &m.OwnerID, &m.ContentType, &m.ContentHash, &m.Locator,
		&m.FileSize, &m.MimeType, &culturalContext, &tags, &m.SignificanceScore,
		&m.AccessLevel, &m.IsPublic, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(culturalContext, &m.CulturalContext); err != nil {
		return nil, fmt.Errorf("unmarshal cultural context: %w", err)
	}
	if err := json.Unmarshal(tags, &m.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return m, nil
}

func marshalSets(culturalContext, tags []string) ([]byte, []byte, error) {
	cc, err := json.Marshal(emptyIfNil(culturalContext))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal cultural context: %w", err)
	}
	tg, err := json.Marshal(emptyIfNil(tags))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tags: %w", err)
	}
	return cc, tg, nil
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
