// Package dbmigrations exposes the journal's SQL migrations embedded into binaries.
package dbmigrations

import "embed"

// Files holds every *.sql migration in this directory.
//
//go:embed *.sql
var Files embed.FS
