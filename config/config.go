package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Crawl     CrawlConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Store     StoreConfig
	Export    ExportConfig
	Debug     DebugConfig
	Sites     SitesConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless is off by default: a human has to log in through the window.
	Headless bool // default: false

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to the launcher as --proxy-server.
	Proxy string

	// ControlURL attaches to an already running browser instead of
	// launching one.
	ControlURL string

	// UserDataDir keeps cookies between runs so a login survives restarts.
	UserDataDir string // default: "./data/browser"

	// Stealth injects the go-rod/stealth evasions into every new tab.
	Stealth bool // default: true

	// AcceptLanguage is sent with every request from the session tab.
	AcceptLanguage string // default: "zh-CN,zh;q=0.9"

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers drops requests to analytics and chat-widget hosts.
	BlockTrackers bool // default: true

	// NavigationTimeout bounds opening a site's entry page.
	NavigationTimeout time.Duration // default: 60s
}

// CrawlConfig holds the walker timings.
type CrawlConfig struct {
	RenderWait  time.Duration // default: 10s
	SettleDelay time.Duration // default: 5s
	ScrollPause time.Duration // default: 1s
	WaitTimeout time.Duration // default: 30s

	// MaxPages is used when a request does not set one; 0 means unbounded.
	MaxPages int // default: 0

	// TrackLayout emits layout_drift events between pages.
	TrackLayout bool // default: true
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// JobsConfig sizes the in-memory crawl job registry.
type JobsConfig struct {
	MaxEntries int           // default: 100
	TTL        time.Duration // default: 24h
}

// StoreConfig controls the SQLite crawl history.
type StoreConfig struct {
	// Path is the database file; empty disables the store.
	Path string // default: "./data/history.db"
}

// ExportConfig controls where crawl results are written.
type ExportConfig struct {
	// Dir receives one CSV and one JSONL file per finished crawl. Empty
	// disables automatic export; on-demand export via the API still works.
	Dir string // default: "./output"
}

// DebugConfig controls page dumps for pages that yield no data.
type DebugConfig struct {
	// DumpDir receives page_source.html, page.md and page.png. Empty disables.
	DumpDir string // default: "./debug"
}

// SitesConfig points at an optional TOML file with schema overrides.
type SitesConfig struct {
	File string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("STEEL_HOST", "127.0.0.1"),
			Port: envIntOr("STEEL_PORT", 8080),
			Mode: envOr("STEEL_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("STEEL_HEADLESS", false),
			NoSandbox:      envBoolOr("STEEL_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("STEEL_BROWSER_BIN"),
			Proxy:          os.Getenv("STEEL_PROXY"),
			ControlURL:     os.Getenv("STEEL_CONTROL_URL"),
			UserDataDir:    envOr("STEEL_USER_DATA_DIR", "./data/browser"),
			Stealth:        envBoolOr("STEEL_STEALTH", true),
			AcceptLanguage: envOr("STEEL_ACCEPT_LANGUAGE", "zh-CN,zh;q=0.9"),
			BlockedResourceTypes: envSliceOr("STEEL_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers:     envBoolOr("STEEL_BLOCK_TRACKERS", true),
			NavigationTimeout: envDurationOr("STEEL_NAV_TIMEOUT", 60*time.Second),
		},
		Crawl: CrawlConfig{
			RenderWait:  envDurationOr("STEEL_RENDER_WAIT", 10*time.Second),
			SettleDelay: envDurationOr("STEEL_SETTLE_DELAY", 5*time.Second),
			ScrollPause: envDurationOr("STEEL_SCROLL_PAUSE", time.Second),
			WaitTimeout: envDurationOr("STEEL_WAIT_TIMEOUT", 30*time.Second),
			MaxPages:    envIntOr("STEEL_MAX_PAGES", 0),
			TrackLayout: envBoolOr("STEEL_TRACK_LAYOUT", true),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("STEEL_AUTH_ENABLED", false),
			APIKeys: envSliceOr("STEEL_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("STEEL_RATE_RPS", 5.0),
			Burst:             envIntOr("STEEL_RATE_BURST", 10),
		},
		Jobs: JobsConfig{
			MaxEntries: envIntOr("STEEL_JOBS_MAX", 100),
			TTL:        envDurationOr("STEEL_JOBS_TTL", 24*time.Hour),
		},
		Store: StoreConfig{
			Path: envOr("STEEL_DB_PATH", "./data/history.db"),
		},
		Export: ExportConfig{
			Dir: envOr("STEEL_OUTPUT_DIR", "./output"),
		},
		Debug: DebugConfig{
			DumpDir: envOr("STEEL_DEBUG_DIR", "./debug"),
		},
		Sites: SitesConfig{
			File: os.Getenv("STEEL_SITES_FILE"),
		},
		Log: LogConfig{
			Level:  envOr("STEEL_LOG_LEVEL", "info"),
			Format: envOr("STEEL_LOG_FORMAT", "json"),
		},
	}
}

// Validate reports every incoherent value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server mode must be debug, release or test, got %q", c.Server.Mode))
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"render wait":  c.Crawl.RenderWait,
		"settle delay": c.Crawl.SettleDelay,
		"scroll pause": c.Crawl.ScrollPause,
		"wait timeout": c.Crawl.WaitTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", name))
		}
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, errors.New("auth is enabled but no API keys are set"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate limit rps must be positive"))
	}
	if c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate limit burst must be positive"))
	}
	if c.Jobs.MaxEntries <= 0 {
		errs = append(errs, errors.New("jobs max entries must be positive"))
	}
	if c.Jobs.TTL <= 0 {
		errs = append(errs, errors.New("jobs ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
