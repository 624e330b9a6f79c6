// database/store.go
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/models"
)

// RunStore keeps the history of orchestrator runs.
type RunStore interface {
	SaveRun(ctx context.Context, s models.RunSummary) error
	RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	Close()
}

// Open connects the store named by cfg.Driver and creates its tables.
// An empty driver means no store: it returns nil, nil.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (RunStore, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "database", "driver", cfg.Driver)

	switch cfg.Driver {
	case "":
		log.Info("run history disabled")
		return nil, nil
	case "mysql":
		s, err := OpenMySQL(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 20
	}
	return limit
}
