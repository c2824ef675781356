package identity

import (
	"context"
	"fmt"

	"github.com/openheritage/memoryvault/internal/server/auth"
)

// MembershipSource looks up the community ids a user belongs to.
type MembershipSource interface {
	MembershipsOf(ctx context.Context, userID string) ([]string, error)
}

// Resolver turns an externally issued bearer token into a request identity.
type Resolver struct {
	secret      []byte
	memberships MembershipSource
}

// NewResolver constructs a Resolver that validates tokens with secret and
// loads memberships from the given source.
func NewResolver(secret []byte, memberships MembershipSource) *Resolver {
	return &Resolver{secret: secret, memberships: memberships}
}

// Resolve returns the identity for tokenString. An empty token resolves to
// the anonymous identity; an invalid one is an error, never a silent
// downgrade to anonymous.
func (r *Resolver) Resolve(ctx context.Context, tokenString string) (Context, error) {
	if tokenString == "" {
		return Anonymous(), nil
	}

	claims, err := auth.ParseToken(tokenString, r.secret)
	if err != nil {
		return Context{}, err
	}

	memberships, err := r.memberships.MembershipsOf(ctx, claims.UserID)
	if err != nil {
		return Context{}, fmt.Errorf("loading memberships: %w", err)
	}

	return New(claims.UserID, claims.VerificationLevel, memberships), nil
}
