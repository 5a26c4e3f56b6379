// Package migrations holds the goose SQL migrations for the Postgres secret store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
