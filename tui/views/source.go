package views

import (
	"context"
	"fmt"
	"time"

	"donorwall/models"
)

// Source is the read side the views render from.
type Source interface {
	ListDonors(ctx context.Context, limit, offset int) ([]models.Donor, error)
	CountDonors(ctx context.Context) (int, error)
	LatestRun(ctx context.Context) (*models.ScrapeRun, error)
	RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error)
	RunLogs(ctx context.Context, runID string) ([]models.ScrapeLog, error)
}

const queryTimeout = 5 * time.Second

func queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), queryTimeout)
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
