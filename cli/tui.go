package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"donorwall/api"
	"donorwall/config"
	"donorwall/storage"
	"donorwall/tui"
)

var flagAPIURL string

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Watch donors, runs and the daemon log in a terminal dashboard",
		RunE:  runTUI,
	}
	cmd.Flags().StringVar(&flagAPIURL, "api-url", "", "Daemon API base URL used by the scrape-now key (default from API_ADDR)")
	return cmd
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadReadOnly(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(context.Background(), cfg.DB)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.DB.Driver, err)
	}
	defer store.Close()

	var trigger tui.TriggerFunc
	if base := apiBaseURL(flagAPIURL, cfg.API); base != "" {
		trigger = api.NewClient(base).TriggerScrape
	}

	return tui.Run(store, cfg.LogFile, trigger)
}

// apiBaseURL turns a listen address like ":5000" into a local URL.
func apiBaseURL(override string, cfg config.APIConfig) string {
	if override != "" {
		return override
	}
	if !cfg.Enabled || cfg.Addr == "" {
		return ""
	}
	addr := cfg.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}
