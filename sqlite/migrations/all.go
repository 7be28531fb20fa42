package migrations

import "embed"

// AllUp holds the schema migrations, applied in file name order. Each
// script ends by setting user_version to its number.
//
//go:embed *.sql
var AllUp embed.FS
