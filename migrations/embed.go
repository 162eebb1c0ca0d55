package migrations

import "embed"

// Files holds the schema for the session history store.
//
//go:embed *.sql
var Files embed.FS
