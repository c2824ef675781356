// Package migrations embeds the goose SQL migrations that bootstrap the
// server schema. Running them is an idempotent, deploy-time operation owned
// by the repository manager, never request-time logic.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
