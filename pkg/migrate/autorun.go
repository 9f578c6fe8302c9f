package migrate

import (
	"context"
	"fmt"

	"github.com/agrimarket/agrimarket-backend/pkg/config"
	"github.com/agrimarket/agrimarket-backend/pkg/db"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date with the embedded migrations
// when AGRIMARKET_AUTO_MIGRATE is set. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	fsys, err := EmbeddedFS()
	if err != nil {
		return err
	}
	if err := ValidateFS(fsys); err != nil {
		return fmt.Errorf("embedded migrations are invalid: %w", err)
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	ctx = logg.WithField(ctx, "source", "embedded")
	logg.Info(ctx, "auto-migrate starting")
	if err := Run(ctx, sqlDB, fsys, CommandUp, logg); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	logg.Info(ctx, "auto-migrate complete")
	return nil
}
