package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/playwright-community/playwright-go"

	"donorwall/config"
	"donorwall/httputil"
)

// BrowserFetcher renders campaign pages in headless Chromium. It is used when
// the site serves a JavaScript challenge that a plain GET cannot pass.
type BrowserFetcher struct {
	creds     *httputil.Credentials
	headless  bool
	timeoutMS float64

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserFetcher(cfg config.HTTPConfig, creds *httputil.Credentials) *BrowserFetcher {
	timeout := cfg.Timeout.Milliseconds()
	if timeout <= 0 {
		timeout = 60000
	}
	return &BrowserFetcher{
		creds:     creds,
		headless:  !cfg.BrowserHeads,
		timeoutMS: float64(timeout),
	}
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	f.browser, err = f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}

	ua, cookie := f.creds.Get()
	opts := playwright.BrowserNewContextOptions{}
	if ua != "" {
		opts.UserAgent = playwright.String(ua)
	}
	if cookie != "" {
		opts.ExtraHttpHeaders = map[string]string{"Cookie": cookie}
	}

	bctx, err := f.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	closeBrowserCtx := closeOnce(func() error { return bctx.Close() })
	defer closeBrowserCtx()

	// playwright calls do not take a context; closing the browser context
	// aborts an in-flight navigation when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeBrowserCtx()
		case <-done:
		}
	}()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(f.timeoutMS),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("reading content of %s: %w", url, err)
	}
	body := []byte(content)

	if resp != nil && !resp.Ok() {
		return body, &StatusError{URL: url, StatusCode: resp.Status()}
	}
	return body, nil
}

// closeOnce returns a func that calls fn at most once, however many
// goroutines call it.
func closeOnce(fn func() error) func() {
	var once sync.Once
	return func() {
		once.Do(func() { _ = fn() })
	}
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		f.browser.Close()
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			log.Printf("playwright stop: %v", err)
		}
	}
	f.initialized = false
}
