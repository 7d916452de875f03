package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running daemon's API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// TriggerScrape asks the daemon to run a cycle now and returns the number of
// donors written.
func (c *Client) TriggerScrape(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/scrape-donors", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("trigger scrape: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Message     string `json:"message"`
		DonorsCount int    `json:"donors_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("trigger scrape: %d %s", resp.StatusCode, body.Message)
	}
	return body.DonorsCount, nil
}
