package httputil

import (
	"net/http"
	"sync"
	"time"

	"donorwall/config"
)

// Credentials holds the request identity sent to the campaign site. It can be
// swapped at runtime when cookies are rotated.
type Credentials struct {
	mu        sync.RWMutex
	userAgent string
	cookie    string
}

func NewCredentials(cfg config.HTTPConfig) *Credentials {
	c := &Credentials{}
	c.Set(cfg)
	return c
}

func (c *Credentials) Set(cfg config.HTTPConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userAgent = cfg.UserAgent
	c.cookie = cfg.CookieHeader()
}

func (c *Credentials) Get() (userAgent, cookie string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userAgent, c.cookie
}

// Apply sets the identity headers the campaign site expects on req.
func (c *Credentials) Apply(req *http.Request) {
	ua, cookie := c.Get()
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// NewScrapingClient returns the client used for campaign pages.
func NewScrapingClient(cfg config.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
