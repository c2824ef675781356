// Package pagination provides page-size normalization and opaque keyset
// cursors for list endpoints. Cursors encode the (created_at, id) position of
// the last returned row, so pages stay stable while newer records are being
// inserted concurrently.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Cursor marks a position in a list ordered by creation time descending with
// the record identifier as a tiebreaker.
type Cursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

// Encode serializes the cursor into an opaque page token.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a page token produced by Encode. An empty token yields a
// zero cursor (start of the list).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid page token: %w", err)
	}
	return c, nil
}

// Zero reports whether the cursor marks the start of the list.
func (c Cursor) Zero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}
