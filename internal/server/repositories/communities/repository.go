package communities

import (
	"context"

	"github.com/openheritage/memoryvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, community *models.CulturalCommunity) (*models.CulturalCommunity, error)
	GetByID(ctx context.Context, id string) (*models.CulturalCommunity, error)

	// MembershipsOf returns the ids of every community the user belongs to.
	MembershipsOf(ctx context.Context, userID string) ([]string, error)

	// AddMember and RemoveMember record membership events and keep the
	// derived member count in step. Both are idempotent: adding an existing
	// member or removing an absent one changes nothing.
	AddMember(ctx context.Context, communityID, userID string) error
	RemoveMember(ctx context.Context, communityID, userID string) error
}
