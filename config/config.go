package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for XDG directory paths.
const AppName = "tagscope"

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Browser     BrowserConfig     `yaml:"browser"`
	Scan        ScanConfig        `yaml:"scan"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment"`
	Performance PerformanceConfig `yaml:"performance"`
	ScriptFetch ScriptFetchConfig `yaml:"scriptFetch"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rateLimit"`
	Log         LogConfig         `yaml:"log"`
	Store       StoreConfig       `yaml:"store"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"noSandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browserBin"`

	// Proxy is passed to the browser as --proxy-server.
	Proxy string `yaml:"proxy"`

	// MaxConcurrentScans bounds how many scans hold a browser context at once.
	MaxConcurrentScans int `yaml:"maxConcurrentScans"` // default: 4

	UserAgent      string `yaml:"userAgent"`
	ViewportWidth  int    `yaml:"viewportWidth"`  // default: 1920
	ViewportHeight int    `yaml:"viewportHeight"` // default: 1080
}

// ScanConfig controls the scan pipeline timing.
type ScanConfig struct {
	// DefaultTimeout bounds a whole scan when the caller sets none.
	DefaultTimeout time.Duration `yaml:"defaultTimeout"` // default: 90s

	// MaxTimeout is the largest timeout a caller may request.
	MaxTimeout time.Duration `yaml:"maxTimeout"` // default: 300s

	// NavigationTimeout bounds the navigation stage.
	NavigationTimeout time.Duration `yaml:"navigationTimeout"` // default: 30s

	// ReadyTimeout bounds the wait for document.readyState == "complete".
	ReadyTimeout time.Duration `yaml:"readyTimeout"` // default: 30s

	// SettleDelay is the pause after load for late tags to fire.
	SettleDelay time.Duration `yaml:"settleDelay"` // default: 2s

	// ConsentDelay is the pause before consent resolution starts, giving
	// banners time to render.
	ConsentDelay time.Duration `yaml:"consentDelay"` // default: 2s

	// ConsentSettle is the pause after an accept click before reading cookies.
	ConsentSettle time.Duration `yaml:"consentSettle"` // default: 2s
}

// EnrichmentConfig controls the tag-manager analysis service.
type EnrichmentConfig struct {
	// Endpoint is the analysis URL; empty disables enrichment.
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"` // default: 30s
}

// PerformanceConfig controls the PageSpeed Insights client.
type PerformanceConfig struct {
	// APIKey enables live measurement; empty means the default sample.
	APIKey   string        `yaml:"apiKey"`
	Endpoint string        `yaml:"endpoint"`
	Strategy string        `yaml:"strategy"` // "mobile" or "desktop"; default: "mobile"
	Timeout  time.Duration `yaml:"timeout"`  // default: 30s
}

// ScriptFetchConfig controls the third-party script hop.
type ScriptFetchConfig struct {
	Timeout  time.Duration `yaml:"timeout"`  // default: 15s
	MaxBytes int64         `yaml:"maxBytes"` // default: 2 MiB
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"apiKeys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"` // default: 0.5

	// Burst is the maximum burst size per API key.
	Burst int `yaml:"burst"` // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// StoreConfig controls scan history persistence.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: $XDG_DATA_HOME/tagscope/scans.db
}

// XDGDataDir returns the data directory for tagscope.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the configuration directory for tagscope.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Browser: BrowserConfig{
			Headless:           true,
			MaxConcurrentScans: 4,
			ViewportWidth:      1920,
			ViewportHeight:     1080,
		},
		Scan: ScanConfig{
			DefaultTimeout:    90 * time.Second,
			MaxTimeout:        300 * time.Second,
			NavigationTimeout: 30 * time.Second,
			ReadyTimeout:      30 * time.Second,
			SettleDelay:       2 * time.Second,
			ConsentDelay:      2 * time.Second,
			ConsentSettle:     2 * time.Second,
		},
		Enrichment:  EnrichmentConfig{Timeout: 30 * time.Second},
		Performance: PerformanceConfig{Strategy: "mobile", Timeout: 30 * time.Second},
		ScriptFetch: ScriptFetchConfig{Timeout: 15 * time.Second, MaxBytes: 2 << 20},
		Auth:        AuthConfig{Enabled: true},
		RateLimit:   RateLimitConfig{RequestsPerSecond: 0.5, Burst: 3},
		Log:         LogConfig{Level: "info", Format: "json"},
		Store:       StoreConfig{Enabled: true, Path: filepath.Join(XDGDataDir(), "scans.db")},
	}
}

// Load builds the configuration: built-in defaults, then the YAML file named
// by TAGSCOPE_CONFIG (or found in the XDG config dir), then environment
// variables.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("TAGSCOPE_CONFIG"))
}

// LoadFrom is Load with an explicit configuration file path. An empty path
// falls back to the XDG config dir.
func LoadFrom(configPath string) (*Config, error) {
	cfg := Defaults()
	if path := FindConfigFile(configPath); path != "" {
		if err := LoadConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides cfg from environment variables. Unset or unparsable
// variables keep the current value.
func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("TAGSCOPE_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("TAGSCOPE_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("TAGSCOPE_MODE", cfg.Server.Mode)

	cfg.Browser.Headless = envBoolOr("TAGSCOPE_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.NoSandbox = envBoolOr("TAGSCOPE_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("TAGSCOPE_BROWSER_BIN", cfg.Browser.BrowserBin)
	cfg.Browser.Proxy = envOr("TAGSCOPE_PROXY", cfg.Browser.Proxy)
	cfg.Browser.MaxConcurrentScans = envIntOr("TAGSCOPE_MAX_SCANS", cfg.Browser.MaxConcurrentScans)
	cfg.Browser.UserAgent = envOr("TAGSCOPE_USER_AGENT", cfg.Browser.UserAgent)

	cfg.Scan.DefaultTimeout = envDurationOr("TAGSCOPE_DEFAULT_TIMEOUT", cfg.Scan.DefaultTimeout)
	cfg.Scan.MaxTimeout = envDurationOr("TAGSCOPE_MAX_TIMEOUT", cfg.Scan.MaxTimeout)
	cfg.Scan.NavigationTimeout = envDurationOr("TAGSCOPE_NAV_TIMEOUT", cfg.Scan.NavigationTimeout)
	cfg.Scan.ReadyTimeout = envDurationOr("TAGSCOPE_READY_TIMEOUT", cfg.Scan.ReadyTimeout)
	cfg.Scan.SettleDelay = envDurationOr("TAGSCOPE_SETTLE_DELAY", cfg.Scan.SettleDelay)
	cfg.Scan.ConsentDelay = envDurationOr("TAGSCOPE_CONSENT_DELAY", cfg.Scan.ConsentDelay)
	cfg.Scan.ConsentSettle = envDurationOr("TAGSCOPE_CONSENT_SETTLE", cfg.Scan.ConsentSettle)

	cfg.Enrichment.Endpoint = envOr("TAGSCOPE_ENRICH_URL", cfg.Enrichment.Endpoint)
	cfg.Enrichment.APIKey = envOr("TAGSCOPE_ENRICH_KEY", cfg.Enrichment.APIKey)
	cfg.Enrichment.Timeout = envDurationOr("TAGSCOPE_ENRICH_TIMEOUT", cfg.Enrichment.Timeout)

	cfg.Performance.APIKey = envOr("TAGSCOPE_PAGESPEED_KEY", cfg.Performance.APIKey)
	cfg.Performance.Endpoint = envOr("TAGSCOPE_PAGESPEED_URL", cfg.Performance.Endpoint)
	cfg.Performance.Strategy = envOr("TAGSCOPE_PAGESPEED_STRATEGY", cfg.Performance.Strategy)
	cfg.Performance.Timeout = envDurationOr("TAGSCOPE_PAGESPEED_TIMEOUT", cfg.Performance.Timeout)

	cfg.ScriptFetch.Timeout = envDurationOr("TAGSCOPE_SCRIPT_TIMEOUT", cfg.ScriptFetch.Timeout)
	cfg.ScriptFetch.MaxBytes = int64(envIntOr("TAGSCOPE_SCRIPT_MAX_BYTES", int(cfg.ScriptFetch.MaxBytes)))

	cfg.Auth.Enabled = envBoolOr("TAGSCOPE_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.APIKeys = envSliceOr("TAGSCOPE_API_KEYS", cfg.Auth.APIKeys)

	cfg.RateLimit.RequestsPerSecond = envFloatOr("TAGSCOPE_RATE_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = envIntOr("TAGSCOPE_RATE_BURST", cfg.RateLimit.Burst)

	cfg.Log.Level = envOr("TAGSCOPE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("TAGSCOPE_LOG_FORMAT", cfg.Log.Format)

	cfg.Store.Enabled = envBoolOr("TAGSCOPE_STORE_ENABLED", cfg.Store.Enabled)
	cfg.Store.Path = envOr("TAGSCOPE_STORE_PATH", cfg.Store.Path)
}

// Validate checks the configuration for values that would break a scan.
func (c *Config) Validate() error {
	if c.Browser.MaxConcurrentScans <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Scan.DefaultTimeout <= 0 || c.Scan.MaxTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Scan.DefaultTimeout > c.Scan.MaxTimeout {
		return ErrTimeoutExceedsMax
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return ErrInvalidLogFormat
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return ErrMissingStorePath
	}
	return nil
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
