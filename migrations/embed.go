// Package migrations embeds the SQL schema into the binary. Importing it
// registers the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
