// Package migrations embeds the goose migrations for the SQL document store.
package migrations

import "embed"

// FS holds the SQL migration files
//
//go:embed *.sql
var FS embed.FS
