// Package migrations holds the server's embedded goose migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
