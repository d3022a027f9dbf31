package database

import (
	"context"
	"fmt"

	"github.com/tylerlaw/portfolio/internal/config"
)

// NewStoreFromConfig opens the Store selected by the database config driver.
// The returned store has been pinged and migrated.
func NewStoreFromConfig(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.URL == "" {
			return nil, fmt.Errorf("url required for postgres database")
		}
		return NewPostgres(ctx, cfg.URL)
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite database")
		}
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}
