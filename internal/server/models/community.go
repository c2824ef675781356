package models

import "time"

// Location is an optional structured place attached to a community.
type Location struct {
	Country   string   `json:"country,omitempty"`
	Region    string   `json:"region,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// CulturalCommunity groups users around a shared cultural focus. MemberCount
// is derived from membership events and maintained monotonically; it is never
// written directly by callers.
type CulturalCommunity struct {
	ID            string
	Name          string
	CulturalFocus []string
	Location      *Location

	MemberCount int

	Verified          bool
	VerificationLevel int

	CreatedAt time.Time
	UpdatedAt time.Time
}
