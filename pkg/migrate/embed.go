package migrate

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var embedded embed.FS

// EmbeddedFS returns the migrations compiled into the binary, rooted at the
// migrations directory so goose sees bare file names.
func EmbeddedFS() (fs.FS, error) {
	return fs.Sub(embedded, "migrations")
}
