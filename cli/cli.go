package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"donorwall/api"
	"donorwall/config"
	"donorwall/httputil"
	"donorwall/logging"
	"donorwall/scheduler"
	"donorwall/scraper"
	"donorwall/storage"
)

var (
	flagOnce   bool
	flagAPI    bool
	flagConfig string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "donorwall",
		Short: "Keep the donor wall table in sync with the campaign site",
		Long: `Periodically fetches the campaign landing page and its "all donors" listing,
saves both as local snapshots, extracts donor names and replaces the donor table.`,
		SilenceUsage: true,
		RunE:         run,
	}

	cmd.Flags().BoolVar(&flagOnce, "once", false, "Run a single cycle and exit")
	cmd.Flags().BoolVar(&flagAPI, "api", true, "Serve the donor API while running as a daemon")
	cmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultCampaignYML, "Campaign YAML file")

	cmd.AddCommand(newTUICmd())

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		logger.Warn().Err(err).Msg("could not set up file logging")
	}
	if logFile != nil {
		defer logFile.Close()
	}

	logger.Info().Str("campaign", cfg.Campaign.MainURL).Msg("Starting donorwall")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.DB.Driver, err)
	}
	defer store.Close()
	if cfg.DB.Driver == "postgres" {
		logger.Info().Str("db", maskConnectionString(cfg.DB.URL)).Msg("Connected to Postgres")
	} else {
		logger.Info().Str("db", cfg.DB.Path).Msg("SQLite database")
	}

	creds := httputil.NewCredentials(cfg.HTTP)
	fetcher := scraper.NewFetcher(cfg.HTTP, creds)
	if bf, ok := fetcher.(*scraper.BrowserFetcher); ok {
		defer bf.Close()
	}

	orchestrator := scraper.NewOrchestrator(cfg, fetcher, store, logger)
	if cfg.S3.Enabled() {
		mirror, err := storage.NewSnapshotMirror(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("configuring snapshot mirror: %w", err)
		}
		orchestrator.SetMirror(mirror)
		logger.Info().Str("bucket", cfg.S3.Bucket).Msg("Snapshot mirror enabled")
	}

	if flagOnce {
		result, err := orchestrator.RunCycle(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("donors", result.DonorsWritten).Msg("Scrape complete")
		return nil
	}

	return runDaemon(ctx, cancel, cfg, creds, orchestrator, store, logger)
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, creds *httputil.Credentials,
	orchestrator *scraper.Orchestrator, store storage.DonorStore, logger zerolog.Logger) error {

	sched := scheduler.New(cfg.Scheduler, orchestrator, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	var server *api.Server
	if flagAPI && cfg.API.Enabled {
		server = api.NewServer(cfg.API.Addr, store, orchestrator, logger)
		server.SetTrigger(sched)
		server.SetWall(cfg.Wall)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	logger.Info().Msg("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, append([]os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}, triggerSignals...)...)
	defer signal.Stop(sigCh)

wait:
	for {
		select {
		case sig := <-sigCh:
			if handleSignal(sig, creds, sched, logger) {
				break wait
			}
		case <-sched.Done():
			logger.Warn().Msg("Scheduler exited")
			break wait
		}
	}

	cancel()
	sched.Stop()
	<-sched.Done()

	if server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Err(err).Msg("API shutdown")
		}
	}

	logger.Info().Msg("Goodbye!")
	return nil
}

type triggerer interface {
	Trigger()
}

// handleSignal reacts to sig and reports whether the daemon should stop.
// SIGHUP reloads credentials and SIGUSR1 queues a cycle.
func handleSignal(sig os.Signal, creds *httputil.Credentials, sched triggerer, logger zerolog.Logger) bool {
	switch {
	case sig == syscall.SIGHUP:
		reloadCredentials(creds, logger)
		return false
	case isTriggerSignal(sig):
		logger.Info().Str("signal", sig.String()).Msg("Scrape requested")
		sched.Trigger()
		return false
	}
	logger.Info().Str("signal", sig.String()).Msg("Shutting down...")
	return true
}

func reloadCredentials(creds *httputil.Credentials, logger zerolog.Logger) {
	httpCfg, err := config.ReloadHTTP()
	if err != nil {
		logger.Error().Err(err).Msg("Credential reload failed; keeping current cookies")
		return
	}
	creds.Set(httpCfg)
	logger.Info().Msg("Reloaded user agent and cookies")
}
