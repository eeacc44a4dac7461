package db

import "embed"

// MigrationFS holds the SQL migrations applied by Migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
