// database/postgres_store.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS scrape_runs (
		run_id        TEXT PRIMARY KEY,
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL,
		attempted     INT NOT NULL,
		succeeded     INT NOT NULL,
		failed        INT NOT NULL,
		empty         INT NOT NULL,
		total_records INT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_runs_started ON scrape_runs (started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS scrape_run_sources (
		run_id       TEXT NOT NULL REFERENCES scrape_runs(run_id) ON DELETE CASCADE,
		source       TEXT NOT NULL,
		status       TEXT NOT NULL,
		record_count INT NOT NULL,
		locations    INT NOT NULL,
		items_failed INT NOT NULL,
		duration_ms  BIGINT NOT NULL,
		error        TEXT,
		PRIMARY KEY (run_id, source)
	)`,
}

// PostgresStore keeps run history in Postgres through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, port),
		Path:   "/" + cfg.DBName,
	}
	return u.String()
}

func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*PostgresStore, error) {
	pcfg, err := pgxpool.ParseConfig(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	pcfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, q := range postgresSchema {
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create run history tables: %w", err)
		}
	}

	log.Info("connected to run history database")
	return &PostgresStore{pool: pool, log: log}, nil
}

// SaveRun writes the run and its results as one batch inside a transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, sum models.RunSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for run %s: %w", sum.RunID, err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO scrape_runs (run_id, started_at, finished_at, attempted, succeeded, failed, empty, total_records)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			attempted = EXCLUDED.attempted,
			succeeded = EXCLUDED.succeeded,
			failed = EXCLUDED.failed,
			empty = EXCLUDED.empty,
			total_records = EXCLUDED.total_records`,
		sum.RunID, sum.StartedAt, sum.FinishedAt, sum.Attempted, sum.Succeeded, sum.Failed, sum.Empty, sum.TotalRecords)
	for _, r := range sum.Results {
		var errMsg *string
		if r.Error != "" {
			e := r.Error
			errMsg = &e
		}
		b.Queue(`
			INSERT INTO scrape_run_sources (run_id, source, status, record_count, locations, items_failed, duration_ms, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id, source) DO UPDATE SET
				status = EXCLUDED.status,
				record_count = EXCLUDED.record_count,
				locations = EXCLUDED.locations,
				items_failed = EXCLUDED.items_failed,
				duration_ms = EXCLUDED.duration_ms,
				error = EXCLUDED.error`,
			sum.RunID, r.Source, string(r.Status), r.Count, r.Locations, r.ItemsFailed, r.DurationMS, errMsg)
	}

	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to save run %s (statement %d): %w", sum.RunID, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch for run %s: %w", sum.RunID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", sum.RunID, err)
	}
	s.log.Debug("saved run", "run_id", sum.RunID, "sources", len(sum.Results))
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, started_at, finished_at, attempted, succeeded, failed, empty, total_records
		FROM scrape_runs ORDER BY started_at DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	var (
		runs  []models.RunSummary
		index = map[string]int{}
		ids   []string
	)
	for rows.Next() {
		var r models.RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Attempted,
			&r.Succeeded, &r.Failed, &r.Empty, &r.TotalRecords); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		index[r.RunID] = len(runs)
		ids = append(ids, r.RunID)
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	if len(ids) == 0 {
		return runs, nil
	}

	rows, err = s.pool.Query(ctx, `
		SELECT run_id, source, status, record_count, locations, items_failed, duration_ms, error
		FROM scrape_run_sources WHERE run_id = ANY($1) ORDER BY run_id, source`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			runID  string
			r      models.FetchResult
			status string
			errMsg *string
		)
		if err := rows.Scan(&runID, &r.Source, &status, &r.Count, &r.Locations, &r.ItemsFailed, &r.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		r.Status = models.FetchStatus(status)
		if errMsg != nil {
			r.Error = *errMsg
		}
		i := index[runID]
		runs[i].Results = append(runs[i].Results, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.log.Info("database connection closed")
	}
}
