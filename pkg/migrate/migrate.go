package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

const (
	CommandUp     = "up"
	CommandDown   = "down"
	CommandStatus = "status"
)

// Run applies command to db using the migrations at the root of fsys.
// Each applied or pending migration is logged.
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, command string, logg *logger.Logger) error {
	provider, err := newProvider(db, fsys)
	if err != nil {
		return err
	}

	switch command {
	case CommandUp:
		results, err := provider.Up(ctx)
		logResults(ctx, logg, results)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case CommandDown:
		result, err := provider.Down(ctx)
		if result != nil {
			logResults(ctx, logg, []*goose.MigrationResult{result})
		}
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case CommandStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, st := range statuses {
			fields := map[string]any{
				"version": st.Source.Version,
				"file":    st.Source.Path,
				"state":   string(st.State),
			}
			if !st.AppliedAt.IsZero() {
				fields["applied_at"] = st.AppliedAt
			}
			logg.Info(logg.WithFields(ctx, fields), "migration status")
		}
	default:
		return fmt.Errorf("unsupported migration command %q", command)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to target, a YYYYMMDDHHMMSS version.
func MigrateToVersion(ctx context.Context, db *sql.DB, fsys fs.FS, target string, logg *logger.Logger) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version <= 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	provider, err := newProvider(db, fsys)
	if err != nil {
		return err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == version:
		logg.Info(logg.WithField(ctx, "version", version), "schema already at target version")
		return nil
	case current < version:
		results, err = provider.UpTo(ctx, version)
	default:
		results, err = provider.DownTo(ctx, version)
	}
	logResults(ctx, logg, results)
	if err != nil {
		return fmt.Errorf("migrate from %d to %d: %w", current, version, err)
	}
	return nil
}

func newProvider(db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		return nil, errors.New("migrations filesystem is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

func logResults(ctx context.Context, logg *logger.Logger, results []*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		logCtx := logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			logg.Error(logCtx, "migration failed", res.Error)
			continue
		}
		logg.Info(logCtx, "migration applied")
	}
}
