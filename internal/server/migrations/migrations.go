// Package migrations embeds the goose schema migrations for the account store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
