package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/openheritage/memoryvault/internal/common"
	"github.com/openheritage/memoryvault/internal/server/identity"
	"github.com/openheritage/memoryvault/internal/server/models"
	"github.com/openheritage/memoryvault/internal/server/repositories/repomanager"
)

// UserService manages user accounts. Credentials are issued and validated by
// an external collaborator; only profile data lives here.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// Register creates a new user account. Email and username must be unique.
func (s *UserService) Register(ctx context.Context, email, username string, culturalBackground []string) (*models.User, error) {
	if email == "" || username == "" {
		return nil, fmt.Errorf("%w: email and username are required", common.ErrValidation)
	}

	user := &models.User{
		ID:                 uuid.NewString(),
		Email:              email,
		Username:           username,
		CulturalBackground: culturalBackground,
	}

	repo := s.repomanager.Users(s.db)
	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}

// GetProfile returns a user's profile by id.
func (s *UserService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// UpdateProfile rewrites the caller's own profile. The identifier is
// immutable and only the account owner may update.
func (s *UserService) UpdateProfile(ctx context.Context, ident identity.Context, user *models.User) (*models.User, error) {
	if ident.IsAnonymous() {
		return nil, common.ErrUnauthorized
	}
	if ident.UserID != user.ID {
		return nil, common.ErrAccessDenied
	}

	repo := s.repomanager.Users(s.db)
	updated, err := repo.UpdateProfile(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	return updated, nil
}
