package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"donorwall/config"
	"donorwall/identity"
	"donorwall/models"
	"donorwall/storage"
)

var (
	// ErrNoDonors marks a cycle whose snapshot produced zero names. The donor
	// table is left untouched.
	ErrNoDonors = errors.New("no donor names extracted")
	// ErrNoCampaignID means the donors URL could not be derived from the
	// landing page.
	ErrNoCampaignID = errors.New("campaign id not found on landing page")
)

// SnapshotUploader mirrors a saved snapshot somewhere else.
type SnapshotUploader interface {
	Upload(ctx context.Context, snapshotPath string, body []byte) error
}

// CycleResult summarises one fetch-parse-replace cycle.
type CycleResult struct {
	RunID         string
	Status        models.RunStatus
	DonorsURL     string
	NamesFound    int
	DonorsWritten int
	Fingerprint   string
	Changed       bool
	Duration      time.Duration
}

type Orchestrator struct {
	campaign  config.CampaignConfig
	retry     config.RetryConfig
	fetcher   Fetcher
	extractor *Extractor
	store     storage.DonorStore
	mirror    SnapshotUploader
	logger    zerolog.Logger

	mu sync.Mutex
}

func NewOrchestrator(cfg *config.Config, fetcher Fetcher, store storage.DonorStore, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		campaign:  cfg.Campaign,
		retry:     cfg.Retry,
		fetcher:   fetcher,
		extractor: NewExtractor(cfg.Campaign.Selectors),
		store:     store,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
}

// SetMirror enables uploading each saved snapshot.
func (o *Orchestrator) SetMirror(m SnapshotUploader) {
	o.mirror = m
}

// RunCycle fetches both campaign pages, extracts donor names from the
// "all donors" snapshot and replaces the donor table. Cycles never overlap.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var prevFingerprint string
	if prev, err := o.store.LatestCompletedRun(ctx); err == nil && prev != nil {
		prevFingerprint = prev.Fingerprint
	}

	start := time.Now()
	run := &models.ScrapeRun{
		ID:        uuid.NewString(),
		StartedAt: start,
		Status:    models.RunStatusRunning,
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		o.logger.Warn().Err(err).Msg("failed to record run start")
	}

	result := &CycleResult{RunID: run.ID}
	o.log(ctx, run.ID, models.LogLevelInfo, fmt.Sprintf("Starting donor scrape at %s", start.Format(time.RFC3339)))

	err := o.runCycle(ctx, run.ID, result)
	if err == nil && prevFingerprint != "" && prevFingerprint != result.Fingerprint {
		result.Changed = true
	}

	// Journal even when ctx was cancelled mid-cycle.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	finished := time.Now()
	result.Duration = finished.Sub(start)
	run.FinishedAt = &finished
	run.NamesFound = result.NamesFound
	run.DonorsWritten = result.DonorsWritten
	run.Fingerprint = result.Fingerprint

	switch {
	case err == nil:
		result.Status = models.RunStatusCompleted
		if result.Changed {
			o.log(jctx, run.ID, models.LogLevelInfo, "Donor list changed since last run")
		}
		o.log(jctx, run.ID, models.LogLevelInfo,
			fmt.Sprintf("Donor scraping completed: %d donors written in %s", result.DonorsWritten, result.Duration.Round(time.Millisecond)))
	case errors.Is(err, ErrNoDonors):
		result.Status = models.RunStatusSkipped
		run.Error = err.Error()
		o.log(jctx, run.ID, models.LogLevelWarn,
			"No donor names extracted; keeping previous donor list (check cookies and selectors)")
	default:
		result.Status = models.RunStatusFailed
		run.Error = err.Error()
		o.log(jctx, run.ID, models.LogLevelError, fmt.Sprintf("Cycle failed: %v", err))
	}
	run.Status = result.Status

	if uerr := o.store.UpdateRun(jctx, run); uerr != nil {
		o.logger.Warn().Err(uerr).Str("run_id", run.ID).Msg("failed to record run finish")
	}

	return result, err
}

func (o *Orchestrator) runCycle(ctx context.Context, runID string, result *CycleResult) error {
	mainBody, err := o.fetchSnapshot(ctx, runID, o.campaign.MainURL, o.campaign.MainSnapshot)
	if err != nil {
		return fmt.Errorf("campaign page: %w", err)
	}

	donorsURL, err := o.donorsURL(mainBody)
	if err != nil {
		return err
	}
	result.DonorsURL = donorsURL

	if _, err := o.fetchSnapshot(ctx, runID, donorsURL, o.campaign.DonorsSnapshot); err != nil {
		return fmt.Errorf("donors page: %w", err)
	}

	names, err := o.extractor.ExtractFile(o.campaign.DonorsSnapshot)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	result.NamesFound = len(names)
	o.log(ctx, runID, models.LogLevelInfo, fmt.Sprintf("Extracted %d donor names", len(names)))

	if len(names) == 0 {
		return ErrNoDonors
	}

	var written int
	err = o.withRetry(ctx, runID, "replace donors", func() error {
		n, err := o.store.ReplaceDonors(ctx, names)
		if err != nil {
			return classify(ctx, err)
		}
		written = n
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	result.DonorsWritten = written
	result.Fingerprint = identity.Fingerprint(names)
	return nil
}

func (o *Orchestrator) fetchSnapshot(ctx context.Context, runID, url, path string) ([]byte, error) {
	var body []byte
	err := o.withRetry(ctx, runID, "GET "+url, func() error {
		b, err := FetchToFile(ctx, o.fetcher, url, path)
		if err != nil {
			return classify(ctx, err)
		}
		body = b
		return nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == 403 {
			o.log(ctx, runID, models.LogLevelWarn, "Campaign site returned 403; the session cookie has probably expired")
		}
		return nil, err
	}

	if o.mirror != nil {
		if err := o.mirror.Upload(ctx, path, body); err != nil {
			o.log(ctx, runID, models.LogLevelWarn, fmt.Sprintf("Snapshot mirror failed for %s: %v", path, err))
		}
	}
	return body, nil
}

func (o *Orchestrator) donorsURL(mainBody []byte) (string, error) {
	if o.campaign.DonorsURL != "" {
		return o.campaign.DonorsURL, nil
	}
	id, err := FindCampaignID(bytes.NewReader(mainBody))
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNoCampaignID
	}
	return strings.Replace(o.campaign.DonorsURLTmpl, "%s", id, 1), nil
}

// withRetry runs op with exponential backoff. op marks non-retryable errors
// with backoff.Permanent.
func (o *Orchestrator) withRetry(ctx context.Context, runID, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if o.retry.Initial > 0 {
		b.InitialInterval = o.retry.Initial
	}
	if o.retry.MaxInterval > 0 {
		b.MaxInterval = o.retry.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempts := o.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		o.log(ctx, runID, models.LogLevelWarn, fmt.Sprintf("%s failed: %v (retrying in %s)", what, err, wait.Round(time.Millisecond)))
	})
}

// classify decides whether err is worth retrying.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	var se *StatusError
	if errors.As(err, &se) && !se.Temporary() {
		return backoff.Permanent(err)
	}
	return err
}

func (o *Orchestrator) log(ctx context.Context, runID string, level models.LogLevel, message string) {
	var ev *zerolog.Event
	switch level {
	case models.LogLevelWarn:
		ev = o.logger.Warn()
	case models.LogLevelError:
		ev = o.logger.Error()
	default:
		ev = o.logger.Info()
	}
	ev.Str("run_id", runID).Msg(message)

	if err := o.store.Log(ctx, runID, level, message); err != nil {
		o.logger.Debug().Err(err).Msg("failed to write scrape log")
	}
}
