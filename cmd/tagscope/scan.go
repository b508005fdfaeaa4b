package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/tagscope/config"
	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/report"
	"github.com/use-agent/tagscope/scraper"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan one page and print its tag report",
		Long: `Scan loads the page in a headless browser, accepts the cookie banner and
prints the tag report.

Examples:
  # JSON report on stdout
  tagscope scan https://shop.example.com/

  # Markdown report written to a file
  tagscope scan -f markdown -o report.md https://shop.example.com/

  # Do not record the result in scan history
  tagscope scan --save=false https://shop.example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("format", "f", "json", "Report format: json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().DurationP("timeout", "t", 0, "Overall scan timeout (default: scan.defaultTimeout)")
	cmd.Flags().Bool("save", true, "Record the result in scan history when it is enabled")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print progress to stderr")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	// Validate the format before paying for a browser launch.
	if _, err := report.New(format, io.Discard); err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.Scan.DefaultTimeout
	}
	if cfg.Scan.MaxTimeout > 0 && timeout > cfg.Scan.MaxTimeout {
		timeout = cfg.Scan.MaxTimeout
	}

	sc, closeBrowser, err := newScanner(cfg)
	if err != nil {
		return err
	}
	defer closeBrowser()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var progress scraper.ProgressFunc
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		errOut := cmd.ErrOrStderr()
		progress = func(step int, message string) {
			fmt.Fprintf(errOut, "[%d/%d] %s\n", step+1, scraper.StageCount, message)
		}
	}

	result, scanErr := sc.RunScan(ctx, args[0], progress)
	if result == nil {
		return scanErr
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		saveResult(cfg, result)
	}

	outPath, _ := cmd.Flags().GetString("output")
	if err := writeReport(cmd.OutOrStdout(), outPath, format, result); err != nil {
		return err
	}
	return scanErr
}

// writeReport renders result to outPath, or to stdout when outPath is empty.
func writeReport(stdout io.Writer, outPath, format string, result *models.ScanResult) error {
	out := stdout
	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(outPath) //nolint:gosec // operator-provided output path
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := report.New(format, out)
	if err != nil {
		return err
	}
	if _, err := w.Write(result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// saveResult records result in scan history. Failures are logged, not
// returned; the report is still printed.
func saveResult(cfg *config.Config, result *models.ScanResult) {
	st, err := openStore(cfg)
	if err != nil {
		slog.Warn("scan history unavailable", "error", err)
		return
	}
	if st == nil {
		return
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := st.Save(ctx, result)
	if err != nil {
		slog.Warn("failed to save scan", "url", result.URL, "error", err)
		return
	}
	slog.Debug("scan saved", "id", id)
}
