// Package perf fetches lab performance metrics for a page from the
// PageSpeed Insights v5 API.
package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/ysmood/gson"

	"github.com/use-agent/tagscope/models"
)

// DefaultEndpoint is the public PageSpeed Insights v5 endpoint.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Sample sources.
const (
	SourcePageSpeed = "pagespeed"
	SourceDefault   = "default"
)

const maxResponseBytes = 20 << 20

// Client is a PageSpeed Insights client. Fetch never fails: any problem
// yields the fixed default sample.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	strategy   string
}

// NewClient creates a Client. An empty apiKey disables live measurement.
func NewClient(endpoint, apiKey, strategy string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if strategy == "" {
		strategy = "mobile"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		strategy:   strategy,
	}
}

// DefaultSample is returned whenever a live measurement is unavailable.
func DefaultSample() *models.PerformanceInfo {
	return &models.PerformanceInfo{
		PerformanceScore:       50,
		AccessibilityScore:     80,
		BestPracticesScore:     80,
		SEOScore:               80,
		FirstContentfulPaint:   1800,
		LargestContentfulPaint: 2500,
		FirstInputDelay:        100,
		CumulativeLayoutShift:  0.1,
		TotalBlockingTime:      200,
		SpeedIndex:             3400,
		TimeToInteractive:      3800,
		LoadTime:               3.0,
		TimeToFirstByte:        600,
		DOMContentLoaded:       1500,
		Source:                 SourceDefault,
	}
}

// Fetch measures pageURL. It returns the default sample when no API key is
// configured or the request fails in any way.
func (c *Client) Fetch(ctx context.Context, pageURL string) *models.PerformanceInfo {
	if c == nil || c.apiKey == "" {
		return DefaultSample()
	}
	info, err := c.fetch(ctx, pageURL)
	if err != nil {
		slog.Warn("pagespeed fetch failed, using default sample", "url", pageURL, "error", err)
		return DefaultSample()
	}
	return info
}

func (c *Client) fetch(ctx context.Context, pageURL string) (*models.PerformanceInfo, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("key", c.apiKey)
	q.Set("strategy", c.strategy)
	for _, cat := range []string{"performance", "accessibility", "best-practices", "seo"} {
		q.Add("category", cat)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pagespeed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pagespeed returned HTTP %d", resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("pagespeed returned invalid JSON")
	}

	return parseResult(gson.NewFrom(string(body)))
}

// parseResult maps a lighthouseResult onto PerformanceInfo.
func parseResult(doc gson.JSON) (*models.PerformanceInfo, error) {
	lh := doc.Get("lighthouseResult")
	if lh.Nil() {
		return nil, fmt.Errorf("response has no lighthouseResult")
	}
	cats := lh.Get("categories")
	audits := lh.Get("audits")

	info := &models.PerformanceInfo{
		PerformanceScore:       categoryScore(cats, "performance"),
		AccessibilityScore:     categoryScore(cats, "accessibility"),
		BestPracticesScore:     categoryScore(cats, "best-practices"),
		SEOScore:               categoryScore(cats, "seo"),
		FirstContentfulPaint:   auditValue(audits, "first-contentful-paint"),
		LargestContentfulPaint: auditValue(audits, "largest-contentful-paint"),
		FirstInputDelay:        auditValue(audits, "max-potential-fid"),
		CumulativeLayoutShift:  auditValue(audits, "cumulative-layout-shift"),
		TotalBlockingTime:      auditValue(audits, "total-blocking-time"),
		SpeedIndex:             auditValue(audits, "speed-index"),
		TimeToInteractive:      auditValue(audits, "interactive"),
		TimeToFirstByte:        auditValue(audits, "server-response-time"),
		Source:                 SourcePageSpeed,
	}

	if items := audits.Get("metrics").Get("details").Get("items").Arr(); len(items) > 0 {
		m := items[0]
		info.DOMContentLoaded = m.Get("observedDomContentLoaded").Num()
		info.LoadTime = round2(m.Get("observedLoad").Num() / 1000)
	}
	return info, nil
}

// categoryScore converts a 0..1 Lighthouse score to 0..100.
func categoryScore(cats gson.JSON, name string) int {
	s := cats.Get(name).Get("score").Num()
	return int(math.Round(s * 100))
}

func auditValue(audits gson.JSON, name string) float64 {
	return audits.Get(name).Get("numericValue").Num()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
