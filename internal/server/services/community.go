package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/openheritage/memoryvault/internal/common"
	"github.com/openheritage/memoryvault/internal/dbx"
	"github.com/openheritage/memoryvault/internal/server/identity"
	"github.com/openheritage/memoryvault/internal/server/models"
	"github.com/openheritage/memoryvault/internal/server/repositories/repomanager"
)

// CommunityService manages cultural communities and their memberships. The
// derived member count is maintained by the repository on membership events,
// never written directly.
type CommunityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewCommunityService(db *sql.DB, m repomanager.RepositoryManager) *CommunityService {
	return &CommunityService{db: db, repomanager: m}
}

// Create registers a new community and makes the creator its first member,
// both in one transaction.
func (s *CommunityService) Create(ctx context.Context, ident identity.Context, community *models.CulturalCommunity) (*models.CulturalCommunity, error) {
	if ident.IsAnonymous() {
		return nil, common.ErrUnauthorized
	}
	if community.Name == "" {
		return nil, fmt.Errorf("%w: community name is required", common.ErrValidation)
	}

	community.ID = uuid.NewString()

	var created *models.CulturalCommunity
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Communities(tx)

		var txErr error
		created, txErr = repo.Create(ctx, community)
		if txErr != nil {
			return txErr
		}
		return repo.AddMember(ctx, community.ID, ident.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating community: %w", err)
	}

	created.MemberCount = 1
	return created, nil
}

// Get returns a community by id.
func (s *CommunityService) Get(ctx context.Context, id string) (*models.CulturalCommunity, error) {
	return s.repomanager.Communities(s.db).GetByID(ctx, id)
}

// Join adds the caller to the community. Idempotent. The membership row and
// the derived member count are written in one transaction so the count never
// drifts from the events.
func (s *CommunityService) Join(ctx context.Context, ident identity.Context, communityID string) error {
	if ident.IsAnonymous() {
		return common.ErrUnauthorized
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Communities(tx).AddMember(ctx, communityID, ident.UserID)
	})
}

// Leave removes the caller from the community. Idempotent; transactional for
// the same reason as Join.
func (s *CommunityService) Leave(ctx context.Context, ident identity.Context, communityID string) error {
	if ident.IsAnonymous() {
		return common.ErrUnauthorized
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Communities(tx).RemoveMember(ctx, communityID, ident.UserID)
	})
}
