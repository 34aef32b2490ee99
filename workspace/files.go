package workspace

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the clients and tasks migrations
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
