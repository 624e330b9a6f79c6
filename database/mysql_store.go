// database/mysql_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/models"
)

var mysqlSchema = []string{`
CREATE TABLE IF NOT EXISTS scrape_runs (
	run_id        VARCHAR(36) NOT NULL PRIMARY KEY,
	started_at    DATETIME(3) NOT NULL,
	finished_at   DATETIME(3) NOT NULL,
	attempted     INT NOT NULL,
	succeeded     INT NOT NULL,
	failed        INT NOT NULL,
	empty         INT NOT NULL,
	total_records INT NOT NULL,
	KEY idx_scrape_runs_started (started_at)
)`, `
CREATE TABLE IF NOT EXISTS scrape_run_sources (
	run_id       VARCHAR(36) NOT NULL,
	source       VARCHAR(128) NOT NULL,
	status       VARCHAR(16) NOT NULL,
	record_count INT NOT NULL,
	locations    INT NOT NULL,
	items_failed INT NOT NULL,
	duration_ms  BIGINT NOT NULL,
	error        TEXT NULL,
	PRIMARY KEY (run_id, source),
	CONSTRAINT fk_run_sources_run FOREIGN KEY (run_id) REFERENCES scrape_runs(run_id) ON DELETE CASCADE
)`}

// MySQLStore keeps run history in MySQL/MariaDB.
type MySQLStore struct {
	db  *sql.DB
	log *slog.Logger
}

// mysqlDSN builds the DSN from the discrete fields unless cfg.DSN is set.
func mysqlDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	mc.Addr = net.JoinHostPort(cfg.Host, port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	return mc.FormatDSN()
}

func OpenMySQL(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", mysqlDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, q := range mysqlSchema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create run history tables: %w", err)
		}
	}

	log.Info("connected to run history database")
	return &MySQLStore{db: db, log: log}, nil
}

// SaveRun stores the summary and its per-source results in one transaction.
// Saving the same run twice updates it.
func (s *MySQLStore) SaveRun(ctx context.Context, sum models.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for run %s: %w", sum.RunID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scrape_runs (run_id, started_at, finished_at, attempted, succeeded, failed, empty, total_records)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			finished_at = VALUES(finished_at),
			attempted = VALUES(attempted),
			succeeded = VALUES(succeeded),
			failed = VALUES(failed),
			empty = VALUES(empty),
			total_records = VALUES(total_records)`,
		sum.RunID, sum.StartedAt, sum.FinishedAt, sum.Attempted, sum.Succeeded, sum.Failed, sum.Empty, sum.TotalRecords)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", sum.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scrape_run_sources (run_id, source, status, record_count, locations, items_failed, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			record_count = VALUES(record_count),
			locations = VALUES(locations),
			items_failed = VALUES(items_failed),
			duration_ms = VALUES(duration_ms),
			error = VALUES(error)`)
	if err != nil {
		return fmt.Errorf("failed to prepare run source insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range sum.Results {
		if _, err := stmt.ExecContext(ctx, sum.RunID, r.Source, string(r.Status), r.Count,
			r.Locations, r.ItemsFailed, r.DurationMS, nullString(r.Error)); err != nil {
			return fmt.Errorf("failed to insert result for source %s: %w", r.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", sum.RunID, err)
	}
	s.log.Debug("saved run", "run_id", sum.RunID, "sources", len(sum.Results))
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (s *MySQLStore) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, attempted, succeeded, failed, empty, total_records
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var r models.RunSummary
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Attempted,
			&r.Succeeded, &r.Failed, &r.Empty, &r.TotalRecords); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	for i := range runs {
		if runs[i].Results, err = s.runResults(ctx, runs[i].RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *MySQLStore) runResults(ctx context.Context, runID string) ([]models.FetchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, status, record_count, locations, items_failed, duration_ms, error
		FROM scrape_run_sources WHERE run_id = ? ORDER BY source`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.FetchResult
	for rows.Next() {
		var (
			r      models.FetchResult
			status string
			errMsg sql.NullString
		)
		if err := rows.Scan(&r.Source, &status, &r.Count, &r.Locations, &r.ItemsFailed, &r.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan result for run %s: %w", runID, err)
		}
		r.Status = models.FetchStatus(status)
		r.Error = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *MySQLStore) Close() {
	if s.db != nil {
		s.db.Close()
		s.log.Info("database connection closed")
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
