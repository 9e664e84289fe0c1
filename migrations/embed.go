// Package migrations carries devicehub's SQLite schema. Importing it for
// side effects makes database.Migrate see the files below.
package migrations

import (
	"embed"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
)

//go:embed *.sql
var schema embed.FS

func init() {
	database.RegisterMigrations(schema)
}
