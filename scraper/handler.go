package scraper

import (
	"context"

	"donorwall/config"
	"donorwall/httputil"
)

// Fetcher downloads one campaign page. A non-2xx response returns the body
// together with a *StatusError so the caller can still keep the snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

func NewFetcher(cfg config.HTTPConfig, creds *httputil.Credentials) Fetcher {
	switch cfg.FetchMode {
	case "browser":
		return NewBrowserFetcher(cfg, creds)
	default:
		return NewHTTPFetcher(httputil.NewScrapingClient(cfg), creds)
	}
}
