package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/use-agent/tagscope/extractor"
	"github.com/use-agent/tagscope/models"
)

// Stage is one step of the scan pipeline.
type Stage struct {
	Name     string
	Message  string
	Critical bool

	// Code classifies errors returned by Run that are not already a
	// *models.ScanError.
	Code string

	Run func(ctx context.Context, r *scanRun) error
}

// StageCount is the number of progress steps a successful scan reports:
// one per stage plus the final scoring step.
const StageCount = 8

// defaultStages is the pipeline in execution order. Critical stages abort
// the scan on failure; the rest leave their result field nil.
func defaultStages() []Stage {
	return []Stage{
		{Name: "initialize", Message: "Starting browser session", Critical: true, Code: models.ErrCodeSession, Run: initializeStage},
		{Name: "navigate", Message: "Loading page", Critical: true, Code: models.ErrCodeNavigation, Run: navigateStage},
		{Name: "load", Message: "Waiting for page to finish loading", Critical: true, Code: models.ErrCodeNavigation, Run: loadStage},
		{Name: "consent", Message: "Resolving cookie consent", Code: models.ErrCodeConsent, Run: consentStage},
		{Name: "performance", Message: "Measuring performance", Code: models.ErrCodeInternal, Run: performanceStage},
		{Name: "extract", Message: "Extracting tags and pixels", Code: models.ErrCodeExtraction, Run: extractStage},
		{Name: "enrich", Message: "Analyzing tag containers", Code: models.ErrCodeEnrichment, Run: enrichStage},
	}
}

func initializeStage(ctx context.Context, r *scanRun) error {
	sess, err := r.scanner.factory.Open(ctx)
	if err != nil {
		return models.NewScanError(models.ErrCodeSession, "failed to open browser session", err)
	}
	r.session = sess
	return nil
}

func navigateStage(ctx context.Context, r *scanRun) error {
	navCtx, cancel := context.WithTimeout(ctx, r.scanner.cfg.NavigationTimeout)
	defer cancel()

	nav, err := r.session.Navigate(navCtx, r.url)
	if err != nil {
		return categorizeError(err, "navigation to target URL failed")
	}
	if nav.StatusCode == 0 {
		return models.NewScanError(models.ErrCodeNavigation, "no document response received", nil)
	}
	if nav.StatusCode < 200 || nav.StatusCode > 299 {
		return models.NewScanError(models.ErrCodeNavigation,
			fmt.Sprintf("target returned HTTP %d", nav.StatusCode), nil)
	}

	r.result.Page.StatusCode = nav.StatusCode
	r.result.Page.FinalURL = nav.FinalURL
	if r.result.Page.FinalURL == "" {
		r.result.Page.FinalURL = r.url
	}
	return nil
}

func loadStage(ctx context.Context, r *scanRun) error {
	readyCtx, cancel := context.WithTimeout(ctx, r.scanner.cfg.ReadyTimeout)
	defer cancel()

	if err := r.session.WaitLoaded(readyCtx); err != nil {
		return categorizeError(err, "page did not finish loading")
	}
	return sleepCtx(ctx, r.scanner.cfg.SettleDelay)
}

func consentStage(ctx context.Context, r *scanRun) error {
	if err := sleepCtx(ctx, r.scanner.cfg.ConsentDelay); err != nil {
		return err
	}
	info, err := r.scanner.resolver.Resolve(ctx, r.session.Page())
	if err != nil {
		return err
	}
	r.result.Cookies = info
	r.result.Page.CookieCount = info.CookieCount
	return nil
}

func performanceStage(ctx context.Context, r *scanRun) error {
	r.result.Performance = r.scanner.perf.Fetch(ctx, r.url)
	return nil
}

func extractStage(ctx context.Context, r *scanRun) error {
	html, err := r.session.HTML(ctx)
	if err != nil {
		return models.NewScanError(models.ErrCodeExtraction, "failed to read rendered HTML", err)
	}

	stats := extractor.PageStats(html)
	stats.FinalURL = r.result.Page.FinalURL
	stats.StatusCode = r.result.Page.StatusCode
	stats.CookieCount = r.result.Page.CookieCount
	r.result.Page = stats

	base := stats.FinalURL
	if base == "" {
		base = r.url
	}
	r.result.Gtm = extractor.ExtractContainers(ctx, html, base, r.scanner.fetchScript)
	r.result.Pixels, r.result.DataLayer = extractor.ExtractPixels(ctx, html, r.session.Evaluate, r.session.Requests())
	return nil
}

func enrichStage(ctx context.Context, r *scanRun) error {
	if r.scanner.enricher == nil || r.result.Gtm == nil || !r.result.Gtm.Found {
		return nil
	}
	info, err := r.scanner.enricher.Enrich(ctx, r.result.Gtm.Containers)
	if err != nil {
		return err
	}
	r.result.Tagstack = info
	return nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, models.NewScanError(models.ErrCodeInvalidInput, "malformed URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, models.NewScanError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported URL scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return nil, models.NewScanError(models.ErrCodeInvalidInput, "URL has no host", nil)
	}
	return u, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
