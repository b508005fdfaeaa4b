package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/use-agent/tagscope/config"
	"github.com/use-agent/tagscope/consent"
	"github.com/use-agent/tagscope/enrich"
	"github.com/use-agent/tagscope/fetcher"
	"github.com/use-agent/tagscope/perf"
	"github.com/use-agent/tagscope/scraper"
	"github.com/use-agent/tagscope/store"
)

// loadConfig resolves configuration for cmd and installs the default logger,
// writing log lines to logOut.
func loadConfig(cmd *cobra.Command, logOut io.Writer) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	initLogger(logOut, cfg.Log)
	return cfg, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(w io.Writer, cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// newScanner launches the browser and assembles the scan pipeline. The
// returned close func shuts the browser down.
func newScanner(cfg *config.Config) (*scraper.Scanner, func(), error) {
	factory, err := scraper.LaunchBrowser(cfg.Browser)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger := slog.Default()
	scripts := fetcher.New(cfg.ScriptFetch.Timeout, cfg.ScriptFetch.MaxBytes, cfg.Browser.UserAgent)

	sc := scraper.NewScanner(scraper.Options{
		Factory:     factory,
		Resolver:    consent.NewResolver(logger, cfg.Scan.ConsentSettle),
		Performance: perf.NewClient(cfg.Performance.Endpoint, cfg.Performance.APIKey, cfg.Performance.Strategy, cfg.Performance.Timeout),
		Enricher:    enrich.NewClient(cfg.Enrichment.Endpoint, cfg.Enrichment.APIKey, cfg.Enrichment.Timeout),
		FetchScript: scripts.Fetch,
		Scan:        cfg.Scan,
		MaxScans:    cfg.Browser.MaxConcurrentScans,
		Logger:      logger,
	})

	closeFn := func() {
		if err := factory.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
	}
	return sc, closeFn, nil
}

// openStore opens scan history. It returns (nil, nil) when persistence is
// disabled.
func openStore(cfg *config.Config) (*store.Store, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan history: %w", err)
	}
	return st, nil
}
