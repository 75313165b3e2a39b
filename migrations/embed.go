// Package migrations embeds the goose SQL migrations so callers can apply
// them with pg.Migrate without shipping files next to the binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
