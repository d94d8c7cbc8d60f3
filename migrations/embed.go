// Package migrations embeds the SQL migration files into the binary, so the
// schema can be applied without the files being present on disk.
package migrations

import (
	"embed"

	"github.com/roomwatch/roomwatch-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
