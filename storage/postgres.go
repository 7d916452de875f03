package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"donorwall/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS donors (
		id BIGSERIAL PRIMARY KEY,
		name TEXT,
		amount BIGINT
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		status TEXT,
		names_found INTEGER DEFAULT 0,
		donors_written INTEGER DEFAULT 0,
		fingerprint TEXT,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT,
		timestamp TIMESTAMPTZ,
		level TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	`)
	return err
}

// =============================================================================
// Donors
// =============================================================================

func (s *PostgresStore) ReplaceDonors(ctx context.Context, names []string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM donors`); err != nil {
		return 0, fmt.Errorf("delete donors: %w", err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"donors"},
		[]string{"name", "amount"},
		pgx.CopyFromSlice(len(names), func(i int) ([]any, error) {
			return []any{names[i], int64(0)}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy donors: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ListDonors(ctx context.Context, limit, offset int) ([]models.Donor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(amount, 0)
		FROM donors ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donors := make([]models.Donor, 0)
	for rows.Next() {
		var d models.Donor
		if err := rows.Scan(&d.ID, &d.Name, &d.Amount); err != nil {
			return nil, err
		}
		donors = append(donors, d)
	}
	return donors, rows.Err()
}

func (s *PostgresStore) CountDonors(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM donors`).Scan(&count)
	return count, err
}

// =============================================================================
// Runs
// =============================================================================

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_runs (id, started_at, status, names_found, donors_written)
		VALUES ($1, $2, $3, 0, 0)`,
		run.ID, run.StartedAt, string(run.Status))
	return err
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scrape_runs SET finished_at = $1, status = $2, names_found = $3,
			donors_written = $4, fingerprint = $5, error = $6
		WHERE id = $7`,
		run.FinishedAt, string(run.Status), run.NamesFound, run.DonorsWritten,
		run.Fingerprint, run.Error, run.ID)
	return err
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*models.ScrapeRun, error) {
	return s.latestRun(ctx, `
		SELECT id, started_at, finished_at, status, names_found, donors_written,
			COALESCE(fingerprint, ''), COALESCE(error, '')
		FROM scrape_runs ORDER BY started_at DESC LIMIT 1`)
}

func (s *PostgresStore) LatestCompletedRun(ctx context.Context) (*models.ScrapeRun, error) {
	return s.latestRun(ctx, `
		SELECT id, started_at, finished_at, status, names_found, donors_written,
			COALESCE(fingerprint, ''), COALESCE(error, '')
		FROM scrape_runs
		WHERE status = 'completed' AND COALESCE(fingerprint, '') <> ''
		ORDER BY started_at DESC LIMIT 1`)
}

func (s *PostgresStore) latestRun(ctx context.Context, query string) (*models.ScrapeRun, error) {
	var run models.ScrapeRun
	var status string
	err := s.pool.QueryRow(ctx, query).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &status, &run.NamesFound,
		&run.DonorsWritten, &run.Fingerprint, &run.Error,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	return &run, nil
}

func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, status, names_found, donors_written,
			COALESCE(fingerprint, ''), COALESCE(error, '')
		FROM scrape_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var run models.ScrapeRun
		var status string
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &status, &run.NamesFound,
			&run.DonorsWritten, &run.Fingerprint, &run.Error); err != nil {
			return nil, err
		}
		run.Status = models.RunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) Log(ctx context.Context, runID string, level models.LogLevel, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message)
		VALUES ($1, $2, $3, $4)`,
		runID, time.Now(), string(level), message)
	return err
}

func (s *PostgresStore) RunLogs(ctx context.Context, runID string) ([]models.ScrapeLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, timestamp, level, message
		FROM scrape_logs WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		var level string
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &level, &l.Message); err != nil {
			return nil, err
		}
		l.Level = models.LogLevel(level)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
