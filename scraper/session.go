package scraper

import (
	"context"

	"github.com/ysmood/gson"

	"github.com/use-agent/tagscope/consent"
	"github.com/use-agent/tagscope/models"
)

// Navigation describes the main document response.
type Navigation struct {
	// StatusCode is 0 when no document response was observed.
	StatusCode int
	FinalURL   string
}

// Session is one isolated browser context owned by a single scan.
type Session interface {
	// Navigate loads url and returns once DOMContentLoaded fired.
	Navigate(ctx context.Context, url string) (Navigation, error)

	// WaitLoaded polls until document.readyState is "complete".
	WaitLoaded(ctx context.Context) error

	// Page exposes the live document to the consent resolver.
	Page() consent.Page

	// Evaluate runs a JS function expression and returns its result.
	Evaluate(ctx context.Context, js string) (gson.JSON, error)

	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)

	// Requests returns every request URL observed since the session opened.
	Requests() []string

	// Close releases the browser context. It is called exactly once.
	Close() error
}

// SessionFactory opens sessions.
type SessionFactory interface {
	Open(ctx context.Context) (Session, error)
}

// ConsentResolver resolves the cookie consent state of a page.
type ConsentResolver interface {
	Resolve(ctx context.Context, page consent.Page) (*models.CookieInfo, error)
}

// PerformanceSource measures a URL. It never fails.
type PerformanceSource interface {
	Fetch(ctx context.Context, url string) *models.PerformanceInfo
}

// Enricher analyzes discovered containers.
type Enricher interface {
	Enrich(ctx context.Context, ids []string) (*models.TagstackInfo, error)
}
