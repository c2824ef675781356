// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. The identifier is immutable; profile fields
// may change over time. Credentials are issued and validated by an external
// collaborator, so no secret material lives here.
type User struct {
	ID       string
	Email    string
	Username string

	// Verified and VerificationLevel come from an external verification
	// process. Level 0 means unverified; higher levels imply a superset of
	// the trust granted by lower ones.
	Verified          bool
	VerificationLevel int

	// CulturalBackground is a set of free-form heritage tags.
	CulturalBackground []string

	CreatedAt time.Time
	UpdatedAt time.Time
}
