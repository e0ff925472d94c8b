// Package migrations embeds the SQL migrations of the migration journal.
package migrations

import "embed"

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
