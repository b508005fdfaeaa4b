package scraper

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/tagscope/consent"
)

// readyPollInterval is how often document.readyState is sampled.
const readyPollInterval = 250 * time.Millisecond

// Navigate loads url and waits for DOMContentLoaded.
//
// The lifecycle waiter MUST be registered before Navigate, otherwise a fast
// page fires the event before anyone listens and the wait hangs until the
// context deadline.
func (s *rodSession) Navigate(ctx context.Context, url string) (Navigation, error) {
	p := s.page.Context(ctx)

	waitDOM := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return Navigation{}, err
	}
	waitDOM()
	if err := ctx.Err(); err != nil {
		return Navigation{}, err
	}

	s.mu.Lock()
	nav := Navigation{StatusCode: s.docStatus, FinalURL: s.docURL}
	s.mu.Unlock()

	// Fall back to the Navigation Timing entry when the CDP event was missed.
	if nav.StatusCode == 0 {
		if res, err := p.Eval(`() => {
			try {
				const entries = performance.getEntriesByType("navigation");
				if (entries.length > 0) return entries[0].responseStatus || 0;
			} catch(e) {}
			return 0;
		}`); err == nil {
			nav.StatusCode = res.Value.Int()
		}
	}
	if href := evalStringOrEmpty(p, `() => window.location.href`); href != "" {
		nav.FinalURL = href
	}
	return nav, nil
}

// WaitLoaded polls document.readyState until it is "complete".
func (s *rodSession) WaitLoaded(ctx context.Context) error {
	p := s.page.Context(ctx)
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		if res, err := p.Eval(`() => document.readyState`); err == nil && res.Value.Str() == "complete" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Page adapts the live document for the consent resolver.
func (s *rodSession) Page() consent.Page {
	return &rodPage{browser: s.browser, page: s.page}
}

// Evaluate runs a JS function expression in the page.
func (s *rodSession) Evaluate(ctx context.Context, js string) (gson.JSON, error) {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

// HTML returns the rendered document.
func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Requests returns a copy of the observed request URLs.
func (s *rodSession) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Close stops the network listener, closes the page and disposes the
// incognito context. Uses the original references without a request
// context so cleanup succeeds even after the scan deadline.
func (s *rodSession) Close() error {
	if s.stopListen != nil {
		s.stopListen()
	}
	_ = s.page.Close()
	return s.browser.Close()
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// rodPage implements consent.Page.
type rodPage struct {
	browser *rod.Browser
	page    *rod.Page
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *rodPage) ScriptSources(ctx context.Context) ([]string, error) {
	res, err := p.page.Context(ctx).Eval(`() => Array.from(document.scripts).map(s => s.src).filter(Boolean)`)
	if err != nil {
		return nil, err
	}
	arr := res.Value.Arr()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.Str())
	}
	return out, nil
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]consent.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]consent.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

// Cookies reads the whole jar of the incognito context, not only the
// cookies scoped to the current URL.
func (p *rodPage) Cookies(ctx context.Context) ([]consent.Cookie, error) {
	cookies, err := p.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, err
	}
	out := make([]consent.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, consent.Cookie{Name: c.Name, Domain: c.Domain})
	}
	return out, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// rodElement implements consent.Element.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

// Visible requires a non-empty box and a rendered, non-transparent style.
func (e *rodElement) Visible() (bool, error) {
	res, err := e.el.Eval(`function () {
		const r = this.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const s = window.getComputedStyle(this);
		return s.display !== 'none' && s.visibility !== 'hidden' && parseFloat(s.opacity) !== 0;
	}`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// Click dispatches a real mouse click and falls back to a DOM click when the
// element is covered by another layer.
func (e *rodElement) Click() error {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err == nil {
		return nil
	}
	_, err := e.el.Eval(`function () { this.click(); }`)
	return err
}
