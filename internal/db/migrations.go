package db

import "embed"

// Migrations holds the golang-migrate schema files, applied by the migrate
// command and by the storage test containers.
//
//go:embed migrations/*.sql
var Migrations embed.FS
