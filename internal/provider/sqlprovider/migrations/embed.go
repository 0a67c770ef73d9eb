// Package migrations embeds the schema of the SQLite message store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
