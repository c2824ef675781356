package repomanager

import (
	"context"
	"database/sql"

	"github.com/openheritage/memoryvault/internal/dbx"
	"github.com/openheritage/memoryvault/internal/server/repositories/communities"
	"github.com/openheritage/memoryvault/internal/server/repositories/memories"
	"github.com/openheritage/memoryvault/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so a
// service can run multi-repository work inside one transaction by handing
// every repository the same *sql.Tx.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Communities(db dbx.DBTX) communities.Repository
	Memories(db dbx.DBTX) memories.Repository

	// RunMigrations applies the embedded schema migrations. Idempotent;
	// meant to run once at startup, never during request handling.
	RunMigrations(ctx context.Context, db *sql.DB) error
}
