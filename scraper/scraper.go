// Package scraper drives one browser session per scan through the fixed
// stage pipeline and assembles the ScanResult.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/use-agent/tagscope/config"
	"github.com/use-agent/tagscope/extractor"
	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/perf"
	"github.com/use-agent/tagscope/scoring"
)

// ProgressFunc observes the pipeline. It is called synchronously before each
// stage with the stage index and a human-readable message.
type ProgressFunc func(step int, message string)

// Options configures a Scanner.
type Options struct {
	Factory     SessionFactory
	Resolver    ConsentResolver
	Performance PerformanceSource
	Enricher    Enricher
	FetchScript extractor.ScriptFetcher
	Scan        config.ScanConfig
	MaxScans    int
	Logger      *slog.Logger
}

// Scanner runs scans. It is safe for concurrent use; at most MaxScans scans
// hold a browser session at once.
type Scanner struct {
	factory     SessionFactory
	resolver    ConsentResolver
	perf        PerformanceSource
	enricher    Enricher
	fetchScript extractor.ScriptFetcher
	cfg         config.ScanConfig
	logger      *slog.Logger
	stages      []Stage

	sem         *semaphore.Weighted
	maxScans    int
	activeScans atomic.Int32
}

// NewScanner creates a Scanner. A nil Performance source yields the default
// sample and a nil Enricher skips enrichment.
func NewScanner(opts Options) *Scanner {
	if opts.MaxScans <= 0 {
		opts.MaxScans = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Performance == nil {
		opts.Performance = defaultPerformance{}
	}
	return &Scanner{
		factory:     opts.Factory,
		resolver:    opts.Resolver,
		perf:        opts.Performance,
		enricher:    opts.Enricher,
		fetchScript: opts.FetchScript,
		cfg:         opts.Scan,
		logger:      opts.Logger,
		stages:      defaultStages(),
		sem:         semaphore.NewWeighted(int64(opts.MaxScans)),
		maxScans:    opts.MaxScans,
	}
}

type defaultPerformance struct{}

func (defaultPerformance) Fetch(context.Context, string) *models.PerformanceInfo {
	return perf.DefaultSample()
}

// Stats returns a snapshot of the scanner's concurrency state.
func (s *Scanner) Stats() models.ScanStats {
	return models.ScanStats{
		MaxScans:    s.maxScans,
		ActiveScans: int(s.activeScans.Load()),
	}
}

// scanRun is the mutable state of one scan. It never outlives RunScan.
type scanRun struct {
	scanner *Scanner
	url     string
	result  *models.ScanResult
	session Session

	closeOnce sync.Once
}

// release closes the session if one was opened. Safe to call repeatedly.
func (r *scanRun) release() {
	r.closeOnce.Do(func() {
		if r.session == nil {
			return
		}
		if err := r.session.Close(); err != nil {
			r.scanner.logger.Warn("session close failed", "url", r.url, "error", err)
		}
	})
}

// exec runs one stage, turning a panic into an error.
func (r *scanRun) exec(ctx context.Context, st Stage) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = models.NewScanError(models.ErrCodeInternal,
				fmt.Sprintf("stage %s panicked: %v", st.Name, p), nil)
		}
	}()
	return st.Run(ctx, r)
}

// RunScan scans rawURL. Invalid input is rejected before any browser
// resource is allocated and returns a nil result. Otherwise the result is
// always returned; the error is non-nil only when a critical stage failed,
// in which case result.Success is false.
//
// Cancellation is not supported mid-stage; callers bound the whole scan
// through ctx.
func (s *Scanner) RunScan(ctx context.Context, rawURL string, progress ProgressFunc) (*models.ScanResult, error) {
	// ── 1. Validate before touching the browser ────────────────────
	if _, err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	// ── 2. Concurrency slot ────────────────────────────────────────
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, categorizeError(err, "timed out waiting for a scan slot")
	}
	defer s.sem.Release(1)
	s.activeScans.Add(1)
	defer s.activeScans.Add(-1)

	start := time.Now()
	run := &scanRun{
		scanner: s,
		url:     rawURL,
		result:  &models.ScanResult{URL: rawURL, Success: true, StartedAt: start},
	}

	// ── 3. CRITICAL DEFER: the session is released on every path ───
	defer run.release()

	// ── 4. Stages ──────────────────────────────────────────────────
	var fatal *models.ScanError
	for i, st := range s.stages {
		notify(progress, i, st.Message)

		stageStart := time.Now()
		err := run.exec(ctx, st)
		report := models.StageReport{
			Index:      i,
			Name:       st.Name,
			Critical:   st.Critical,
			OK:         err == nil,
			DurationMs: time.Since(stageStart).Milliseconds(),
		}
		if err != nil {
			report.Error = err.Error()
		}
		run.result.Stages = append(run.result.Stages, report)

		if err == nil {
			s.logger.Debug("stage finished", "url", rawURL, "stage", st.Name, "duration_ms", report.DurationMs)
			continue
		}
		if st.Critical {
			fatal = toScanError(err, st)
			s.logger.Warn("critical stage failed, aborting scan",
				"url", rawURL, "stage", st.Name, "critical", true, "error", err)
			break
		}
		s.logger.Warn("stage failed, continuing",
			"url", rawURL, "stage", st.Name, "critical", false, "error", err)
	}

	run.release()

	// ── 5. Finalize ────────────────────────────────────────────────
	result := run.result
	result.Duration = time.Since(start)
	if fatal != nil {
		result.Success = false
		result.Error = fatal.Error()
		return result, fatal
	}

	notify(progress, len(s.stages), "Calculating scores")
	scores := scoring.Score(result)
	result.Scores = &scores
	s.logger.Info("scan finished", "url", rawURL, "overall", scores.Overall, "duration", result.Duration)
	return result, nil
}

// notify invokes progress, isolating the pipeline from observer panics.
func notify(progress ProgressFunc, step int, message string) {
	if progress == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("progress callback panicked", "step", step, "panic", p)
		}
	}()
	progress(step, message)
}

// toScanError classifies a stage error with the stage's code.
func toScanError(err error, st Stage) *models.ScanError {
	var se *models.ScanError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return categorizeError(err, fmt.Sprintf("stage %s timed out", st.Name))
	}
	return models.NewScanError(st.Code, fmt.Sprintf("stage %s failed", st.Name), err)
}

// categorizeError wraps raw errors into typed ScanErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScanError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScanError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScanError(models.ErrCodeTimeout, "scan canceled", err)
	default:
		return models.NewScanError(models.ErrCodeNavigation, msg, err)
	}
}
