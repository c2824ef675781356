package models

import "time"

// Memory is an archived cultural artifact record. The identifier, owner, and
// content hash are write-once: changing the content means creating a new
// Memory. Everything else is owner-mutable metadata.
type Memory struct {
	ID      string
	OwnerID string

	// ContentType is one of the recognized kinds (image, video, audio,
	// document), see common.ValidContentType.
	ContentType string

	// ContentHash is the content-addressed digest assigned by the object
	// store; identical bytes always yield an identical hash.
	ContentHash string

	// Locator is a resolvable URL for the content, derived from the hash.
	// It may be regenerated at any time without changing record identity.
	Locator string

	FileSize *int64
	MimeType *string

	CulturalContext []string
	Tags            []string

	// SignificanceScore is computed by an external classification pipeline
	// and stored verbatim; the core never derives it.
	SignificanceScore *float64

	// AccessLevel is the authoritative visibility signal (public, community,
	// private). IsPublic is a derived cache of AccessLevel == public kept for
	// fast filtering and recomputed on every write.
	AccessLevel string
	IsPublic    bool

	// Communities lists the cultural communities this artifact is shared
	// with. Required non-empty when AccessLevel is community.
	Communities []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemoryUpdate carries the owner-mutable metadata fields for updates. Nil
// fields are left unchanged.
type MemoryUpdate struct {
	CulturalContext   *[]string
	Tags              *[]string
	SignificanceScore *float64
	AccessLevel       *string
	Communities       *[]string
}
