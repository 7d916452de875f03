package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"donorwall/config"
	"donorwall/scraper"
)

// CycleRunner runs one scrape cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*scraper.CycleResult, error)
}

// Scheduler runs the cycle immediately and then again after each delay. The
// delay starts when a cycle finishes, so cycles never overlap. When a cron
// expression is configured it replaces the fixed delay.
type Scheduler struct {
	cfg    config.SchedulerConfig
	runner CycleRunner
	logger zerolog.Logger

	cron      *cron.Cron
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

func New(cfg config.SchedulerConfig, runner CycleRunner, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		runner:    runner,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		return s.startCron(ctx)
	}

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = config.DefaultInterval
	}
	s.logger.Info().Dur("interval", interval).Msg("Starting scheduler with fixed delay")
	go s.loop(ctx, interval)
	return nil
}

func (s *Scheduler) startCron(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.logger.Info().Str("cron", s.cfg.Cron).Msg("Starting scheduler with cron")
	s.cron.Start()

	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.triggerCh:
				s.runOnce(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
		case <-s.triggerCh:
			s.logger.Info().Msg("Scrape triggered manually")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}

		s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		s.logger.Info().Dur("sleep", interval).Msg("Sleeping until next cycle")
		timer.Reset(interval)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.RunCycle(ctx)
	switch {
	case err == nil:
		s.logger.Info().Str("run_id", result.RunID).Int("donors", result.DonorsWritten).
			Dur("took", result.Duration).Msg("Cycle completed")
	case errors.Is(err, scraper.ErrNoDonors):
		s.logger.Warn().Str("run_id", result.RunID).Msg("Cycle skipped: no donors extracted")
	case errors.Is(err, context.Canceled):
		s.logger.Info().Msg("Cycle cancelled")
	default:
		ev := s.logger.Error().Err(err)
		if result != nil {
			ev = ev.Str("run_id", result.RunID)
		}
		ev.Msg("Cycle failed")
	}
}

// Trigger asks for a cycle now. Triggers arriving while one is already
// pending are dropped.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Done is closed when the scheduler loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		close(s.stopCh)
	})
}
