// Package migrations carries the Postgres schema as embedded SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
