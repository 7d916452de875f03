package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval    = 300 * time.Second
	MinInterval        = 30 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"
	DefaultCampaignYML = "config/campaign.yaml"
)

var ErrInvalidConfig = errors.New("invalid config")

var (
	cssColorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20})$`)
	cssURLPattern   = regexp.MustCompile(`^[^'"()\\\s<>]*$`)
)

type Config struct {
	Campaign  CampaignConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Retry     RetryConfig
	DB        DBConfig
	API       APIConfig
	S3        S3Config
	Wall      WallConfig
	LogLevel  string
	LogFile   string
}

type CampaignConfig struct {
	MainURL        string    `yaml:"main_url"`
	DonorsURL      string    `yaml:"donors_url"`
	DonorsURLTmpl  string    `yaml:"donors_url_template"`
	MainSnapshot   string    `yaml:"main_snapshot"`
	DonorsSnapshot string    `yaml:"donors_snapshot"`
	Selectors      Selectors `yaml:"selectors"`
}

// Selectors names the leaderboard markup the extractor looks for.
type Selectors struct {
	TableID   string `yaml:"table_id"`
	RowClass  string `yaml:"row_class"`
	NameClass string `yaml:"name_class"`
}

type HTTPConfig struct {
	UserAgent    string
	Cookie       string
	CFClearance  string
	Timeout      time.Duration
	FetchMode    string
	BrowserHeads bool
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type RetryConfig struct {
	MaxAttempts int
	Initial     time.Duration
	MaxInterval time.Duration
}

type DBConfig struct {
	Driver string
	Path   string
	URL    string
}

type APIConfig struct {
	Enabled bool
	Addr    string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// WallConfig controls how the donor wall page scrolls the donor list.
type WallConfig struct {
	BackgroundImage string `yaml:"background_image"`
	FontSize        int    `yaml:"font_size"`
	FontColor       string `yaml:"font_color"`
	ScrollSpeed     int    `yaml:"scroll_speed"`
	ScrollDirection string `yaml:"scroll_direction"`
	ScrollPosition  string `yaml:"scroll_position"`
	ScrollWidth     int    `yaml:"scroll_width"`
	ScrollHeight    int    `yaml:"scroll_height"`
}

func DefaultWall() WallConfig {
	return WallConfig{
		FontSize:        24,
		FontColor:       "#FFFFFF",
		ScrollSpeed:     50,
		ScrollDirection: "up",
		ScrollPosition:  "center",
		ScrollWidth:     300,
		ScrollHeight:    500,
	}
}

// Horizontal reports whether names scroll sideways.
func (w WallConfig) Horizontal() bool {
	return w.ScrollDirection == "left" || w.ScrollDirection == "right"
}

// normalize replaces unusable values with defaults. The values end up in
// generated CSS, so anything outside the expected shapes is dropped.
func (w WallConfig) normalize() WallConfig {
	def := DefaultWall()
	if w.FontSize <= 0 {
		w.FontSize = def.FontSize
	}
	if !cssColorPattern.MatchString(w.FontColor) {
		w.FontColor = def.FontColor
	}
	if w.ScrollSpeed <= 0 {
		w.ScrollSpeed = def.ScrollSpeed
	}
	switch w.ScrollDirection {
	case "up", "down", "left", "right":
	default:
		w.ScrollDirection = def.ScrollDirection
	}
	switch w.ScrollPosition {
	case "top", "center", "bottom", "left", "right":
	default:
		w.ScrollPosition = def.ScrollPosition
	}
	if w.ScrollWidth <= 0 {
		w.ScrollWidth = def.ScrollWidth
	}
	if w.ScrollHeight <= 0 {
		w.ScrollHeight = def.ScrollHeight
	}
	if !cssURLPattern.MatchString(w.BackgroundImage) {
		w.BackgroundImage = ""
	}
	return w
}

// Load reads .env, the optional campaign YAML file and the environment.
// Environment values win over YAML values.
func Load(campaignPath string) (*Config, error) {
	cfg, err := load(campaignPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadReadOnly is Load for tools that only read the database. Only the
// database settings are validated, so no campaign URL is needed.
func LoadReadOnly(campaignPath string) (*Config, error) {
	cfg, err := load(campaignPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.DB.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(campaignPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Campaign: CampaignConfig{
			DonorsURLTmpl:  "https://give.njit.edu/campaigns/%s/campaign_donors.html?show=all",
			MainSnapshot:   "honors-winter-gala.html",
			DonorsSnapshot: "campaign_donors_72810_all.html",
			Selectors:      DefaultSelectors(),
		},
		Wall:     DefaultWall(),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "daemon.log"),
	}

	if campaignPath == "" {
		campaignPath = DefaultCampaignYML
	}
	if err := cfg.loadCampaign(campaignPath); err != nil {
		return nil, err
	}

	cfg.Campaign.MainURL = getEnv("DONOR_WEBSITE_URL", cfg.Campaign.MainURL)
	cfg.Campaign.DonorsURL = getEnv("DONORS_URL", cfg.Campaign.DonorsURL)
	cfg.Campaign.MainSnapshot = getEnv("DONOR_CACHE_MAIN_FILE", cfg.Campaign.MainSnapshot)
	cfg.Campaign.DonorsSnapshot = getEnv("DONOR_CACHE_MODAL_FILE", cfg.Campaign.DonorsSnapshot)

	cfg.HTTP = LoadHTTP()

	cfg.Scheduler = SchedulerConfig{
		Interval: clampInterval(getEnvDuration("SCRAPE_INTERVAL", DefaultInterval)),
		Cron:     os.Getenv("SCRAPE_CRON"),
	}

	cfg.Retry = RetryConfig{
		MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		Initial:     getEnvDuration("RETRY_INITIAL", 2*time.Second),
		MaxInterval: getEnvDuration("RETRY_MAX_INTERVAL", 30*time.Second),
	}

	cfg.DB = DBConfig{
		Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		Path:   getEnv("DATABASE_PATH", "donors.db"),
		URL:    os.Getenv("DATABASE_URL"),
	}

	cfg.API = APIConfig{
		Enabled: getEnv("ENABLE_API", "true") == "true",
		Addr:    getEnv("API_ADDR", ":5000"),
	}

	cfg.S3 = S3Config{
		Bucket:          os.Getenv("S3_BUCKET"),
		Region:          getEnv("S3_REGION", "us-east-1"),
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		Prefix:          getEnv("S3_PREFIX", "snapshots/"),
	}

	w := cfg.Wall
	w.BackgroundImage = getEnv("WALL_BACKGROUND_IMAGE", w.BackgroundImage)
	w.FontSize = getEnvInt("WALL_FONT_SIZE", w.FontSize)
	w.FontColor = getEnv("WALL_FONT_COLOR", w.FontColor)
	w.ScrollSpeed = getEnvInt("WALL_SCROLL_SPEED", w.ScrollSpeed)
	w.ScrollDirection = strings.ToLower(getEnv("WALL_SCROLL_DIRECTION", w.ScrollDirection))
	w.ScrollPosition = strings.ToLower(getEnv("WALL_SCROLL_POSITION", w.ScrollPosition))
	w.ScrollWidth = getEnvInt("WALL_SCROLL_WIDTH", w.ScrollWidth)
	w.ScrollHeight = getEnvInt("WALL_SCROLL_HEIGHT", w.ScrollHeight)
	cfg.Wall = w.normalize()

	return cfg, nil
}

// LoadHTTP reads the request identity from the environment. It is also used
// on SIGHUP to pick up rotated cookies without a restart.
func LoadHTTP() HTTPConfig {
	return HTTPConfig{
		UserAgent:    getEnv("SCRAPE_USER_AGENT", DefaultUserAgent),
		Cookie:       os.Getenv("SCRAPE_COOKIE_STRING"),
		CFClearance:  os.Getenv("CF_CLEARANCE_COOKIE"),
		Timeout:      getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		FetchMode:    strings.ToLower(getEnv("FETCH_MODE", "http")),
		BrowserHeads: os.Getenv("BROWSER_HEADFUL") == "true",
	}
}

// ReloadHTTP re-reads .env (overriding the current environment) and returns
// the fresh request identity.
func ReloadHTTP() (HTTPConfig, error) {
	if err := godotenv.Overload(); err != nil && !os.IsNotExist(err) {
		return HTTPConfig{}, fmt.Errorf("reload .env: %w", err)
	}
	return LoadHTTP(), nil
}

// CookieHeader combines the raw cookie string with the optional
// cf_clearance value into a single Cookie header value.
func (h HTTPConfig) CookieHeader() string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(h.Cookie); c != "" {
		parts = append(parts, strings.TrimSuffix(c, ";"))
	}
	if h.CFClearance != "" && !strings.Contains(h.Cookie, "cf_clearance=") {
		parts = append(parts, "cf_clearance="+h.CFClearance)
	}
	return strings.Join(parts, "; ")
}

func DefaultSelectors() Selectors {
	return Selectors{
		TableID:   "all-table",
		RowClass:  "leaderboard-row",
		NameClass: "col-sm-6",
	}
}

func (c *Config) Validate() error {
	if c.Campaign.MainURL == "" {
		return fmt.Errorf("%w: DONOR_WEBSITE_URL is required", ErrInvalidConfig)
	}
	if c.Campaign.DonorsURL == "" && !strings.Contains(c.Campaign.DonorsURLTmpl, "%s") {
		return fmt.Errorf("%w: DONORS_URL or a donors_url_template with %%s is required", ErrInvalidConfig)
	}
	if c.Campaign.MainSnapshot == "" || c.Campaign.DonorsSnapshot == "" {
		return fmt.Errorf("%w: snapshot paths must not be empty", ErrInvalidConfig)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	switch c.HTTP.FetchMode {
	case "http", "browser":
	default:
		return fmt.Errorf("%w: unknown FETCH_MODE %q", ErrInvalidConfig, c.HTTP.FetchMode)
	}
	if err := c.DB.Validate(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	return nil
}

func (d DBConfig) Validate() error {
	switch d.Driver {
	case "sqlite":
		if d.Path == "" {
			return fmt.Errorf("%w: DATABASE_PATH is required", ErrInvalidConfig)
		}
	case "postgres":
		if d.URL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown DB_DRIVER %q", ErrInvalidConfig, d.Driver)
	}
	return nil
}

// campaignFile is the layout of the campaign YAML file.
type campaignFile struct {
	CampaignConfig `yaml:",inline"`
	Wall           *WallConfig `yaml:"wall"`
}

func (c *Config) loadCampaign(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var file campaignFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	campaign := file.CampaignConfig
	if file.Wall != nil {
		c.Wall = mergeWall(c.Wall, *file.Wall)
	}

	if campaign.MainURL != "" {
		c.Campaign.MainURL = campaign.MainURL
	}
	if campaign.DonorsURL != "" {
		c.Campaign.DonorsURL = campaign.DonorsURL
	}
	if campaign.DonorsURLTmpl != "" {
		c.Campaign.DonorsURLTmpl = campaign.DonorsURLTmpl
	}
	if campaign.MainSnapshot != "" {
		c.Campaign.MainSnapshot = campaign.MainSnapshot
	}
	if campaign.DonorsSnapshot != "" {
		c.Campaign.DonorsSnapshot = campaign.DonorsSnapshot
	}
	if campaign.Selectors.TableID != "" {
		c.Campaign.Selectors.TableID = campaign.Selectors.TableID
	}
	if campaign.Selectors.RowClass != "" {
		c.Campaign.Selectors.RowClass = campaign.Selectors.RowClass
	}
	if campaign.Selectors.NameClass != "" {
		c.Campaign.Selectors.NameClass = campaign.Selectors.NameClass
	}
	return nil
}

func mergeWall(base, over WallConfig) WallConfig {
	if over.BackgroundImage != "" {
		base.BackgroundImage = over.BackgroundImage
	}
	if over.FontSize > 0 {
		base.FontSize = over.FontSize
	}
	if over.FontColor != "" {
		base.FontColor = over.FontColor
	}
	if over.ScrollSpeed > 0 {
		base.ScrollSpeed = over.ScrollSpeed
	}
	if over.ScrollDirection != "" {
		base.ScrollDirection = strings.ToLower(over.ScrollDirection)
	}
	if over.ScrollPosition != "" {
		base.ScrollPosition = strings.ToLower(over.ScrollPosition)
	}
	if over.ScrollWidth > 0 {
		base.ScrollWidth = over.ScrollWidth
	}
	if over.ScrollHeight > 0 {
		base.ScrollHeight = over.ScrollHeight
	}
	return base
}

func clampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("5m") or bare seconds ("300").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
