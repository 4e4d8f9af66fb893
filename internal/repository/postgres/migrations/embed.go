package migrations

import "embed"

// FS contains the embedded directory schema migrations.
//
//go:embed *.sql
var FS embed.FS
