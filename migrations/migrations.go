// Package migrations embeds the PostgreSQL schema migrations.
package migrations

import "embed"

// FS holds the versioned SQL files applied by golang-migrate.
//
//go:embed postgres/*.sql
var FS embed.FS
