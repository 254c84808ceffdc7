// Package migrations embeds the console-session schema for each supported
// database.
package migrations

import "embed"

// SQLite holds golang-migrate style up/down files under sqlite/.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds plain forward-only files under postgres/, applied in name
// order and recorded in schema_migrations.
//
//go:embed postgres/*.sql
var Postgres embed.FS
