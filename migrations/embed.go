// Package migrations embeds the Postgres schema migrations applied by
// `careline-server migrate up`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
