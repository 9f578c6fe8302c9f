package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var (
	fileNameRe   = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)
)

var requiredMarkers = []string{"-- +goose Up", "-- +goose Down"}

// ValidateDir runs ValidateFS over a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("migrations dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every .sql file at the root of fsys: the name must be
// <YYYYMMDDHHMMSS>_<snake_name>.sql with a real timestamp, versions must be
// unique and both goose sections must be present. All problems are returned
// together.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}

	var problems error
	owners := make(map[string]string, len(names))
	for _, name := range names {
		match := fileNameRe.FindStringSubmatch(name)
		if match == nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: name must look like YYYYMMDDHHMMSS_snake_name.sql", name))
			continue
		}
		version := match[1]
		if _, err := time.Parse(versionLayout, version); err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: version %s is not a timestamp", name, version))
		}
		if other, dup := owners[version]; dup {
			problems = multierr.Append(problems, fmt.Errorf("%s: version %s already used by %s", name, version, other))
		}
		owners[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		for _, marker := range requiredMarkers {
			if !strings.Contains(string(body), marker) {
				problems = multierr.Append(problems, fmt.Errorf("%s: missing %q", name, marker))
			}
		}
	}
	return problems
}

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- undo %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration stamped with the current
// UTC time and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now().UTC())
}

func createSQLMigration(dir, name string, at time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("migrations dir is required")
	}
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, at.Format(versionLayout)+"_"+slug+".sql")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	_, err = fmt.Fprintf(f, sqlTemplate, slug)
	return path, multierr.Append(err, f.Close())
}
