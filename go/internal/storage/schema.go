package storage

import _ "embed"

// Schema creates every table the Postgres-backed components use.
//
//go:embed schema.sql
var Schema string
