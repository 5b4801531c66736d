package migrations

import "embed"

// FS holds the SQL migrations applied by `migrate up`.
//
//go:embed *.sql
var FS embed.FS
