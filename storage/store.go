package storage

import (
	"context"
	"fmt"

	"donorwall/config"
	"donorwall/models"
)

// DonorStore owns the donor table and the cycle journal.
type DonorStore interface {
	// ReplaceDonors deletes every donor row and inserts one row per name with
	// amount 0. It returns the number of rows inserted.
	ReplaceDonors(ctx context.Context, names []string) (int, error)
	ListDonors(ctx context.Context, limit, offset int) ([]models.Donor, error)
	CountDonors(ctx context.Context) (int, error)

	CreateRun(ctx context.Context, run *models.ScrapeRun) error
	UpdateRun(ctx context.Context, run *models.ScrapeRun) error
	LatestRun(ctx context.Context) (*models.ScrapeRun, error)
	// LatestCompletedRun is the newest completed run with a fingerprint.
	LatestCompletedRun(ctx context.Context) (*models.ScrapeRun, error)
	RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error)
	Log(ctx context.Context, runID string, level models.LogLevel, message string) error
	RunLogs(ctx context.Context, runID string) ([]models.ScrapeLog, error)

	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DBConfig) (DonorStore, error) {
	switch cfg.Driver {
	case "sqlite", "":
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.Driver)
	}
}
