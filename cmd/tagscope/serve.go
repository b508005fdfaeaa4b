package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/tagscope/api"
	"github.com/use-agent/tagscope/api/handler"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan HTTP API",
		Long: `Serve starts the HTTP API:

  GET  /api/v1/health      liveness and scan slot usage (no auth)
  POST /api/v1/scan        run a scan
  GET  /api/v1/scans       list recent scans
  GET  /api/v1/scans/:id   fetch a stored scan result

Listen address, browser, auth and rate limits come from the configuration
file and TAGSCOPE_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides configuration)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration and logging ───────────────────────────
	cfg, err := loadConfig(cmd, os.Stdout)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	slog.Info("tagscope starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxScans", cfg.Browser.MaxConcurrentScans,
	)

	// ── 2. Initialise scanner (launches browser) ────────────────────
	sc, closeBrowser, err := newScanner(cfg)
	if err != nil {
		return err
	}
	defer closeBrowser()

	// ── 3. Open scan history ────────────────────────────────────────
	var hist handler.History
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		hist = st
		slog.Info("scan history enabled", "path", cfg.Store.Path)
	}

	// ── 4. Setup router ─────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := api.NewRouter(ctx, sc, hist, cfg, time.Now())

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("tagscope stopped")
	return nil
}
