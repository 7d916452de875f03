package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"donorwall/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS donors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		amount INTEGER
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		names_found INTEGER DEFAULT 0,
		donors_written INTEGER DEFAULT 0,
		fingerprint TEXT,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) ReplaceDonors(ctx context.Context, names []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM donors`); err != nil {
		return 0, fmt.Errorf("delete donors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO donors (name, amount) VALUES (?, 0)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, name); err != nil {
			return 0, fmt.Errorf("insert donor %q: %w", name, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListDonors(ctx context.Context, limit, offset int) ([]models.Donor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, amount FROM donors ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donors := make([]models.Donor, 0)
	for rows.Next() {
		var d models.Donor
		var name sql.NullString
		var amount sql.NullInt64
		if err := rows.Scan(&d.ID, &name, &amount); err != nil {
			return nil, err
		}
		d.Name = name.String
		d.Amount = amount.Int64
		donors = append(donors, d)
	}
	return donors, rows.Err()
}

func (s *SQLiteStore) CountDonors(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donors`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (id, started_at, status, names_found, donors_written)
		VALUES (?, ?, ?, 0, 0)`,
		run.ID, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs SET finished_at = ?, status = ?, names_found = ?,
			donors_written = ?, fingerprint = ?, error = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.NamesFound, run.DonorsWritten,
		run.Fingerprint, run.Error, run.ID)
	return err
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*models.ScrapeRun, error) {
	return s.latestRun(ctx, `
		SELECT id, started_at, finished_at, status, names_found, donors_written,
			COALESCE(fingerprint, ''), COALESCE(error, '')
		FROM scrape_runs ORDER BY started_at DESC LIMIT 1`)
}

// LatestCompletedRun returns the newest completed run that recorded a
// fingerprint, or nil if there is none.
func (s *SQLiteStore) LatestCompletedRun(ctx context.Context) (*models.ScrapeRun, error) {
	return s.latestRun(ctx, `
		SELECT id, started_at, finished_at, status, names_found, donors_written,
			COALESCE(fingerprint, ''), COALESCE(error, '')
		FROM scrape_runs
		WHERE status = 'completed' AND COALESCE(fingerprint, '') <> ''
		ORDER BY started_at DESC LIMIT 1`)
}

func (s *SQLiteStore) latestRun(ctx context.Context, query string) (*models.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx, query)

	var run models.ScrapeRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.NamesFound,
		&run.DonorsWritten, &run.Fingerprint, &run.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, names_found, donors_written,
			COALESCE(fingerprint, ''), COALESCE(error, '')
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var run models.ScrapeRun
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &run.NamesFound,
			&run.DonorsWritten, &run.Fingerprint, &run.Error); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(ctx context.Context, runID string, level models.LogLevel, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`,
		runID, time.Now(), level, message)
	return err
}

// RunLogs returns the journal lines for one cycle in write order.
func (s *SQLiteStore) RunLogs(ctx context.Context, runID string) ([]models.ScrapeLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, timestamp, level, message
		FROM scrape_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
