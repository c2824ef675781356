// Package services contains server-side business logic. This file implements
// MemoryService, the archival orchestrator: it validates submissions, uploads
// artifact bytes to the content store, persists records transactionally, and
// enforces access decisions on every read.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/openheritage/memoryvault/internal/common"
	"github.com/openheritage/memoryvault/internal/dbx"
	"github.com/openheritage/memoryvault/internal/logging"
	"github.com/openheritage/memoryvault/internal/server/access"
	"github.com/openheritage/memoryvault/internal/server/config"
	"github.com/openheritage/memoryvault/internal/server/contentstore"
	"github.com/openheritage/memoryvault/internal/server/identity"
	"github.com/openheritage/memoryvault/internal/server/models"
	"github.com/openheritage/memoryvault/internal/server/pagination"
	"github.com/openheritage/memoryvault/internal/server/repositories/memories"
	"github.com/openheritage/memoryvault/internal/server/repositories/repomanager"
)

// retryBackoffBase seeds the exponential backoff between retry attempts of
// idempotent reads. Writes are never auto-retried.
const retryBackoffBase = 100 * time.Millisecond

// SubmitRequest carries everything needed to archive a new artifact.
type SubmitRequest struct {
	Payload     []byte
	ContentType string
	MimeType    string

	CulturalContext   []string
	Tags              []string
	SignificanceScore *float64

	// AccessLevel defaults to private when empty.
	AccessLevel string
	Communities []string
}

// MetadataUpdate carries owner-mutable fields for UpdateMetadata. Nil fields
// stay unchanged. ID, OwnerID, and ContentHash are present only so a
// transport can pass through whatever the caller sent; any non-nil value
// there is rejected as an immutable-field violation.
type MetadataUpdate struct {
	CulturalContext   *[]string
	Tags              *[]string
	SignificanceScore *float64
	AccessLevel       *string
	Communities       *[]string

	ID          *string
	OwnerID     *string
	ContentHash *string
}

// MemoryService orchestrates artifact archival and retrieval.
type MemoryService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	store         contentstore.Client
	log           logging.Logger
	maxUploadSize int64
	retryAttempts int
	pageSizes     pagination.PageSizeConfig

	orphanedObjects func(contentHash string)
}

// NewMemoryService constructs a MemoryService using repositories, the content
// store, and server config.
func NewMemoryService(db *sql.DB, m repomanager.RepositoryManager, store contentstore.Client,
	log logging.Logger, cfg *config.Config) *MemoryService {
	return &MemoryService{
		db:            db,
		repomanager:   m,
		store:         store,
		log:           log,
		maxUploadSize: cfg.MaxUploadSizeBytes,
		retryAttempts: cfg.UpstreamRetryAttempts,
		pageSizes:     pagination.PageSizeConfig{Default: 20, Max: 100},
	}
}

// SetOrphanHook installs a callback invoked whenever an uploaded object ends
// up without a database record. Used to feed reconciliation tooling.
func (s *MemoryService) SetOrphanHook(fn func(contentHash string)) {
	s.orphanedObjects = fn
}

// Submit validates and archives a new artifact: bytes go to the content
// store first, then the record and its community associations are persisted
// in one transaction. Submit is never auto-retried; a retry would double the
// record even though the upload itself is idempotent.
//
// If the upload succeeds but the persist fails, the stored object is left
// behind and reported as orphaned for out-of-band reconciliation.
func (s *MemoryService) Submit(ctx context.Context, ident identity.Context, req *SubmitRequest) (*models.Memory, error) {
	if ident.IsAnonymous() {
		return nil, common.ErrUnauthorized
	}
	if !common.ValidContentType(req.ContentType) {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedContentType, req.ContentType)
	}
	if len(req.Payload) == 0 {
		return nil, common.ErrEmptyPayload
	}
	if s.maxUploadSize > 0 && int64(len(req.Payload)) > s.maxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", common.ErrPayloadTooLarge, len(req.Payload))
	}

	level := req.AccessLevel
	if level == "" {
		level = common.AccessLevelPrivate
	}
	if !common.ValidAccessLevel(level) {
		return nil, fmt.Errorf("%w: unknown access level %q", common.ErrValidation, level)
	}
	if level == common.AccessLevelCommunity && len(req.Communities) == 0 {
		return nil, fmt.Errorf("%w: community access level requires at least one community", common.ErrValidation)
	}

	obj, err := s.store.Store(ctx, req.Payload, req.MimeType)
	if err != nil {
		return nil, err
	}

	size := int64(len(req.Payload))
	memory := &models.Memory{
		ID:                uuid.NewString(),
		OwnerID:           ident.UserID,
		ContentType:       req.ContentType,
		ContentHash:       obj.ContentHash,
		Locator:           obj.Locator,
		FileSize:          &size,
		CulturalContext:   req.CulturalContext,
		Tags:              req.Tags,
		SignificanceScore: req.SignificanceScore,
		AccessLevel:       level,
		IsPublic:          level == common.AccessLevelPublic,
		Communities:       req.Communities,
	}
	if req.MimeType != "" {
		memory.MimeType = &req.MimeType
	}

	var created *models.Memory
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Memories(tx)

		var txErr error
		created, txErr = repo.Create(ctx, memory)
		if txErr != nil {
			return txErr
		}

		if len(req.Communities) > 0 {
			if txErr := repo.SetCommunities(ctx, memory.ID, req.Communities); txErr != nil {
				return txErr
			}
		}
		created.Communities = req.Communities
		return nil
	})
	if err != nil {
		s.reportOrphan(ctx, obj.ContentHash, err)
		if errors.Is(err, common.ErrConstraintViolation) {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidOwnerOrCommunity, err)
		}
		if errors.Is(err, common.ErrDuplicateID) {
			return nil, fmt.Errorf("%w: %v", common.ErrIntegrityViolation, err)
		}
		return nil, fmt.Errorf("error persisting memory: %w", err)
	}

	return created, nil
}

// reportOrphan logs an uploaded object whose record never made it into the
// database. The object is harmless (content-addressed, unreachable without a
// record) but occupies storage until reconciliation removes it.
func (s *MemoryService) reportOrphan(ctx context.Context, contentHash string, cause error) {
	s.log.Error(ctx, "orphaned content object", "content_hash", contentHash, "cause", cause)
	if s.orphanedObjects != nil {
		s.orphanedObjects(contentHash)
	}
}

// Retrieve returns the artifact record if the identity may read it. Denials
// are uniform: every deny reason surfaces as the same ErrAccessDenied so
// callers cannot distinguish "private" from "not a member". An absent
// identifier gets the same treatment; answering "not found" next to "access
// denied" would confirm which private identifiers exist.
func (s *MemoryService) Retrieve(ctx context.Context, ident identity.Context, id string) (*models.Memory, error) {
	var memory *models.Memory
	err := s.retryRead(ctx, func(ctx context.Context) error {
		var readErr error
		memory, readErr = s.repomanager.Memories(s.db).GetByID(ctx, id)
		return readErr
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Info(ctx, "read denied", "memory_id", id, "reason", "absent")
			return nil, common.ErrAccessDenied
		}
		return nil, err
	}

	if d := access.Evaluate(memory, ident); !d.Allowed {
		s.log.Info(ctx, "read denied", "memory_id", id, "reason", string(d.Reason))
		return nil, common.ErrAccessDenied
	}

	return memory, nil
}

// RetrieveContent resolves the artifact's bytes from the content store after
// the same access evaluation as Retrieve.
func (s *MemoryService) RetrieveContent(ctx context.Context, ident identity.Context, id string) ([]byte, error) {
	memory, err := s.Retrieve(ctx, ident, id)
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = s.retryRead(ctx, func(ctx context.Context) error {
		var fetchErr error
		payload, fetchErr = s.store.Fetch(ctx, memory.ContentHash)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// RefreshLocator regenerates a resolvable URL for the artifact's content.
// Regeneration never changes record identity.
func (s *MemoryService) RefreshLocator(ctx context.Context, ident identity.Context, id string) (string, error) {
	memory, err := s.Retrieve(ctx, ident, id)
	if err != nil {
		return "", err
	}
	return s.store.Locator(ctx, memory.ContentHash)
}

// UpdateMetadata rewrites owner-mutable metadata. Only the owner may update;
// everyone else gets the uniform ErrAccessDenied. Attempts to touch the
// identifier, owner, or content hash fail as immutable-field violations
// before anything is written.
func (s *MemoryService) UpdateMetadata(ctx context.Context, ident identity.Context, id string, upd *MetadataUpdate) (*models.Memory, error) {
	if ident.IsAnonymous() {
		return nil, common.ErrUnauthorized
	}

	memory, err := s.repomanager.Memories(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Info(ctx, "update denied", "memory_id", id, "reason", "absent")
			return nil, common.ErrAccessDenied
		}
		return nil, err
	}
	if memory.OwnerID != ident.UserID {
		s.log.Info(ctx, "update denied", "memory_id", id, "user_id", ident.UserID)
		return nil, common.ErrAccessDenied
	}

	if field := upd.immutableField(); field != "" {
		return nil, fmt.Errorf("%w: %s", common.ErrImmutableField, field)
	}

	// The effective (access level, communities) pair after the update must
	// still satisfy: community tier implies at least one association.
	if upd.AccessLevel != nil || upd.Communities != nil {
		level := memory.AccessLevel
		if upd.AccessLevel != nil {
			if !common.ValidAccessLevel(*upd.AccessLevel) {
				return nil, fmt.Errorf("%w: unknown access level %q", common.ErrValidation, *upd.AccessLevel)
			}
			level = *upd.AccessLevel
		}
		communities := memory.Communities
		if upd.Communities != nil {
			communities = *upd.Communities
		}
		if level == common.AccessLevelCommunity && len(communities) == 0 {
			return nil, fmt.Errorf("%w: community access level requires at least one community", common.ErrValidation)
		}
	}

	var updated *models.Memory
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Memories(tx)

		if upd.Communities != nil {
			if txErr := repo.SetCommunities(ctx, id, *upd.Communities); txErr != nil {
				return txErr
			}
		}

		var txErr error
		updated, txErr = repo.Update(ctx, id, &models.MemoryUpdate{
			CulturalContext:   upd.CulturalContext,
			Tags:              upd.Tags,
			SignificanceScore: upd.SignificanceScore,
			AccessLevel:       upd.AccessLevel,
			Communities:       upd.Communities,
		})
		return txErr
	})
	if err != nil {
		if errors.Is(err, common.ErrConstraintViolation) {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidOwnerOrCommunity, err)
		}
		return nil, fmt.Errorf("error updating memory: %w", err)
	}

	return updated, nil
}

// immutableField names the first write-once field the update tries to touch,
// or "" when none.
func (u *MetadataUpdate) immutableField() string {
	switch {
	case u.ID != nil:
		return "id"
	case u.OwnerID != nil:
		return "owner_id"
	case u.ContentHash != nil:
		return "content_hash"
	}
	return ""
}

// ListVisibleTo returns one page of artifacts the identity may read, newest
// first, with an opaque token for the next page. The keyset cursor stays
// stable while new records are inserted concurrently.
func (s *MemoryService) ListVisibleTo(ctx context.Context, ident identity.Context, f memories.Filter,
	pageSize int, pageToken string) ([]*models.Memory, string, error) {

	cur, err := pagination.Decode(pageToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	size := pagination.ClampPageSize(pageSize, s.pageSizes)

	viewer := memories.Viewer{UserID: ident.UserID, Memberships: ident.Memberships()}

	var items []*models.Memory
	err = s.retryRead(ctx, func(ctx context.Context) error {
		var listErr error
		items, listErr = s.repomanager.Memories(s.db).ListVisibleTo(ctx, viewer, f, size, cur)
		return listErr
	})
	if err != nil {
		return nil, "", err
	}

	return items, nextPageToken(items, size), nil
}

// ListOwned returns one page of the identity's own artifacts, any access
// level, newest first.
func (s *MemoryService) ListOwned(ctx context.Context, ident identity.Context,
	pageSize int, pageToken string) ([]*models.Memory, string, error) {

	if ident.IsAnonymous() {
		return nil, "", common.ErrUnauthorized
	}

	cur, err := pagination.Decode(pageToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	size := pagination.ClampPageSize(pageSize, s.pageSizes)

	var items []*models.Memory
	err = s.retryRead(ctx, func(ctx context.Context) error {
		var listErr error
		items, listErr = s.repomanager.Memories(s.db).ListByOwner(ctx, ident.UserID, size, cur)
		return listErr
	})
	if err != nil {
		return nil, "", err
	}

	return items, nextPageToken(items, size), nil
}

// ListPublic returns one page of public artifacts, available to anonymous
// callers.
func (s *MemoryService) ListPublic(ctx context.Context, pageSize int, pageToken string) ([]*models.Memory, string, error) {
	cur, err := pagination.Decode(pageToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	size := pagination.ClampPageSize(pageSize, s.pageSizes)

	var items []*models.Memory
	err = s.retryRead(ctx, func(ctx context.Context) error {
		var listErr error
		items, listErr = s.repomanager.Memories(s.db).ListByAccessLevel(ctx, common.AccessLevelPublic, size, cur)
		return listErr
	})
	if err != nil {
		return nil, "", err
	}

	return items, nextPageToken(items, size), nil
}

func nextPageToken(items []*models.Memory, size int) string {
	if len(items) < size {
		return ""
	}
	last := items[len(items)-1]
	return pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
}

// retryRead runs an idempotent read, retrying with exponential backoff when
// it fails with a retryable upstream error. Total attempts are bounded by
// config; everything that is not a timeout or an upstream outage fails
// immediately.
func (s *MemoryService) retryRead(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := s.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(retryBackoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrTimeout) || errors.Is(err, common.ErrUpstreamUnavailable) {
			s.log.Warn(ctx, "retryable upstream failure", "cause", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
