// Package migrations embeds the SQL migration files for the tgwatch database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
