package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DONOR_WEBSITE_URL", "https://example.org/campaigns/1/gala")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Scheduler.Interval != DefaultInterval {
		t.Fatalf("expected interval %s, got %s", DefaultInterval, cfg.Scheduler.Interval)
	}
	if cfg.Campaign.Selectors != DefaultSelectors() {
		t.Fatalf("unexpected selectors %+v", cfg.Campaign.Selectors)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "donors.db" {
		t.Fatalf("unexpected db config %+v", cfg.DB)
	}
	if cfg.HTTP.UserAgent != DefaultUserAgent {
		t.Fatalf("unexpected user agent %q", cfg.HTTP.UserAgent)
	}
	if cfg.S3.Enabled() {
		t.Fatalf("expected S3 mirror disabled by default")
	}
}

func TestLoad_MissingCampaignURL(t *testing.T) {
	t.Setenv("DONOR_WEBSITE_URL", "")
	t.Chdir(t.TempDir())

	_, err := Load("")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoad_YAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "campaign.yaml")
	yml := `main_url: https://yaml.example/gala
donors_url: https://yaml.example/all
main_snapshot: main.html
selectors:
  table_id: donors
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DONOR_WEBSITE_URL", "")
	t.Setenv("DONORS_URL", "https://env.example/all")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Campaign.MainURL != "https://yaml.example/gala" {
		t.Fatalf("expected yaml main url, got %s", cfg.Campaign.MainURL)
	}
	if cfg.Campaign.DonorsURL != "https://env.example/all" {
		t.Fatalf("expected env donors url, got %s", cfg.Campaign.DonorsURL)
	}
	if cfg.Campaign.MainSnapshot != "main.html" {
		t.Fatalf("unexpected main snapshot %s", cfg.Campaign.MainSnapshot)
	}
	if cfg.Campaign.Selectors.TableID != "donors" || cfg.Campaign.Selectors.RowClass != "leaderboard-row" {
		t.Fatalf("unexpected selectors %+v", cfg.Campaign.Selectors)
	}
}

func TestLoadReadOnly_NoCampaignURL(t *testing.T) {
	t.Setenv("DONOR_WEBSITE_URL", "")
	t.Setenv("DATABASE_PATH", "wall.db")
	t.Chdir(t.TempDir())

	cfg, err := LoadReadOnly("")
	if err != nil {
		t.Fatalf("expected read-only load without a campaign URL, got %v", err)
	}
	if cfg.DB.Path != "wall.db" {
		t.Fatalf("unexpected db path %s", cfg.DB.Path)
	}
}

func TestLoadReadOnly_StillChecksDatabase(t *testing.T) {
	t.Setenv("DONOR_WEBSITE_URL", "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Chdir(t.TempDir())

	if _, err := LoadReadOnly(""); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoad_WallFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "campaign.yaml")
	yml := `main_url: https://yaml.example/gala
wall:
  font_size: 32
  scroll_direction: left
  font_color: "red; background: url(x)"
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DONOR_WEBSITE_URL", "")
	t.Setenv("WALL_SCROLL_SPEED", "80")
	t.Setenv("WALL_SCROLL_POSITION", "sideways")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	w := cfg.Wall
	if w.FontSize != 32 || w.ScrollDirection != "left" || !w.Horizontal() {
		t.Fatalf("expected yaml wall values, got %+v", w)
	}
	if w.ScrollSpeed != 80 {
		t.Fatalf("expected env scroll speed 80, got %d", w.ScrollSpeed)
	}
	if w.FontColor != "#FFFFFF" {
		t.Fatalf("expected unsafe font color to fall back, got %q", w.FontColor)
	}
	if w.ScrollPosition != "center" {
		t.Fatalf("expected unknown position to fall back, got %q", w.ScrollPosition)
	}
	if w.ScrollWidth != 300 || w.ScrollHeight != 500 {
		t.Fatalf("expected default box, got %dx%d", w.ScrollWidth, w.ScrollHeight)
	}
}

func TestWallNormalize_BackgroundImage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/static/gala.jpg", "/static/gala.jpg"},
		{"https://cdn.example/bg.png", "https://cdn.example/bg.png"},
		{"x.jpg'); color: red", ""},
		{"bg .jpg", ""},
	}
	for _, tt := range tests {
		w := DefaultWall()
		w.BackgroundImage = tt.in
		if got := w.normalize().BackgroundImage; got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("DONOR_WEBSITE_URL", "https://example.org/gala")
	t.Setenv("DB_DRIVER", "mysql")
	t.Chdir(t.TempDir())

	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		val  string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"300", 300 * time.Second},
		{"garbage", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.val)
			if got := getEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %s, want %s", tt.val, got, tt.want)
			}
		})
	}
}

func TestClampInterval(t *testing.T) {
	if got := clampInterval(5 * time.Second); got != MinInterval {
		t.Errorf("expected floor %s, got %s", MinInterval, got)
	}
	if got := clampInterval(0); got != DefaultInterval {
		t.Errorf("expected default %s, got %s", DefaultInterval, got)
	}
	if got := clampInterval(10 * time.Minute); got != 10*time.Minute {
		t.Errorf("expected 10m, got %s", got)
	}
}

func TestCookieHeader(t *testing.T) {
	tests := []struct {
		name string
		h    HTTPConfig
		want string
	}{
		{"empty", HTTPConfig{}, ""},
		{"raw only", HTTPConfig{Cookie: "a=1; b=2"}, "a=1; b=2"},
		{"clearance only", HTTPConfig{CFClearance: "xyz"}, "cf_clearance=xyz"},
		{"both", HTTPConfig{Cookie: "a=1;", CFClearance: "xyz"}, "a=1; cf_clearance=xyz"},
		{"clearance already present", HTTPConfig{Cookie: "cf_clearance=old", CFClearance: "xyz"}, "cf_clearance=old"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.CookieHeader(); got != tt.want {
				t.Errorf("CookieHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}
