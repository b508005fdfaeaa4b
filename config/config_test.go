package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
	if cfg.Browser.MaxConcurrentScans != 4 {
		t.Errorf("MaxConcurrentScans = %d, want 4", cfg.Browser.MaxConcurrentScans)
	}
	if cfg.Scan.ConsentDelay != 2*time.Second || cfg.Scan.ConsentSettle != 2*time.Second {
		t.Errorf("ConsentDelay = %v, ConsentSettle = %v, want 2s each", cfg.Scan.ConsentDelay, cfg.Scan.ConsentSettle)
	}
	if filepath.Base(cfg.Store.Path) != "scans.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero concurrency", func(c *Config) { c.Browser.MaxConcurrentScans = 0 }, ErrInvalidConcurrency},
		{"zero timeout", func(c *Config) { c.Scan.DefaultTimeout = 0 }, ErrInvalidTimeout},
		{"default above max", func(c *Config) { c.Scan.DefaultTimeout = 10 * time.Minute }, ErrTimeoutExceedsMax},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
		{"store without path", func(c *Config) { c.Store.Path = "" }, ErrMissingStorePath},
		{"store disabled without path", func(c *Config) { c.Store.Enabled = false; c.Store.Path = "" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFileOverlay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9090
scan:
  defaultTimeout: 45s
enrichment:
  endpoint: https://analyzer.example.com/api/analyze
auth:
  apiKeys: [k1, k2]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := LoadConfigFile(path, cfg); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, default should survive overlay", cfg.Server.Host)
	}
	if cfg.Scan.DefaultTimeout != 45*time.Second {
		t.Errorf("DefaultTimeout = %v, want 45s", cfg.Scan.DefaultTimeout)
	}
	if cfg.Enrichment.Endpoint != "https://analyzer.example.com/api/analyze" {
		t.Errorf("Enrichment.Endpoint = %q", cfg.Enrichment.Endpoint)
	}
	if len(cfg.Auth.APIKeys) != 2 {
		t.Errorf("APIKeys = %v", cfg.Auth.APIKeys)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Parallel()

	err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"), Defaults())
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\nlog:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TAGSCOPE_CONFIG", path)
	t.Setenv("TAGSCOPE_PORT", "7070")
	t.Setenv("TAGSCOPE_API_KEYS", " a , ,b ")
	t.Setenv("TAGSCOPE_RATE_RPS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want env value 7070", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want file value warn", cfg.Log.Level)
	}
	if got := cfg.Auth.APIKeys; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("APIKeys = %v, want [a b]", got)
	}
	if cfg.RateLimit.RequestsPerSecond != 0.5 {
		t.Errorf("RequestsPerSecond = %v, unparsable env should keep default", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestLoadConsentTimingsAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scan:\n  consentSettle: 5s\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		env        map[string]string
		wantDelay  time.Duration
		wantSettle time.Duration
	}{
		{"file sets settle only", nil, 2 * time.Second, 5 * time.Second},
		{"env sets delay only", map[string]string{"TAGSCOPE_CONSENT_DELAY": "500ms"}, 500 * time.Millisecond, 5 * time.Second},
		{"env sets both", map[string]string{"TAGSCOPE_CONSENT_DELAY": "1s", "TAGSCOPE_CONSENT_SETTLE": "3s"}, time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TAGSCOPE_CONFIG", path)
			t.Setenv("TAGSCOPE_CONSENT_DELAY", "")
			t.Setenv("TAGSCOPE_CONSENT_SETTLE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Scan.ConsentDelay != tt.wantDelay {
				t.Errorf("ConsentDelay = %v, want %v", cfg.Scan.ConsentDelay, tt.wantDelay)
			}
			if cfg.Scan.ConsentSettle != tt.wantSettle {
				t.Errorf("ConsentSettle = %v, want %v", cfg.Scan.ConsentSettle, tt.wantSettle)
			}
		})
	}
}
