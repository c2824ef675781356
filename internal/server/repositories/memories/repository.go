package memories

import (
	"context"

	"github.com/openheritage/memoryvault/internal/server/models"
	"github.com/openheritage/memoryvault/internal/server/pagination"
)

// Viewer identifies who is asking for a listing. A zero UserID means
// anonymous; Memberships are the viewer's community ids.
type Viewer struct {
	UserID      string
	Memberships []string
}

// Filter narrows list results. Zero fields are ignored.
type Filter struct {
	ContentType string
	OwnerID     string
}

type Repository interface {
	// Create inserts the memory row only. Community associations are written
	// separately with SetCommunities so both can share one transaction.
	Create(ctx context.Context, memory *models.Memory) (*models.Memory, error)

	// SetCommunities replaces the artifact's community associations.
	SetCommunities(ctx context.Context, memoryID string, communityIDs []string) error

	// GetByID returns the memory with its community associations populated,
	// or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Memory, error)

	// Update rewrites owner-mutable metadata fields; nil fields in upd are
	// left unchanged. Identifier, owner, and content hash are not touchable
	// through this path.
	Update(ctx context.Context, id string, upd *models.MemoryUpdate) (*models.Memory, error)

	// List queries return newest-first pages; the cursor marks the last row
	// of the previous page and stays valid under concurrent inserts.
	ListByOwner(ctx context.Context, ownerID string, size int, cur pagination.Cursor) ([]*models.Memory, error)
	ListByAccessLevel(ctx context.Context, level string, size int, cur pagination.Cursor) ([]*models.Memory, error)
	ListVisibleTo(ctx context.Context, viewer Viewer, f Filter, size int, cur pagination.Cursor) ([]*models.Memory, error)
}
