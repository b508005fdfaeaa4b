// Package consent identifies the cookie consent management platform on a
// rendered page and tries to trigger its "accept all" control.
package consent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/signatures"
)

// Page is the live-document view the resolver needs. The scraper adapts a
// browser page to it; tests use an in-memory fake.
type Page interface {
	// Has reports whether selector matches at least one element.
	Has(ctx context.Context, selector string) (bool, error)

	// ScriptSources returns the src attribute of every <script> element.
	ScriptSources(ctx context.Context) ([]string, error)

	// Elements returns every element matching selector, in document order.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// Cookies returns the cookies visible to the page.
	Cookies(ctx context.Context) ([]Cookie, error)

	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
}

// Element is one clickable candidate.
type Element interface {
	Text() (string, error)
	Visible() (bool, error)
	Click() error
}

// Cookie is the subset of cookie fields the resolver reports on.
type Cookie struct {
	Name   string
	Domain string
}

// maxCandidates bounds how many elements are inspected per selector.
const maxCandidates = 50

// Resolver runs consent detection and acceptance. It holds no per-scan state
// and is safe for concurrent use.
type Resolver struct {
	logger *slog.Logger

	// settle is how long to wait after a click before reading cookies.
	settle time.Duration
}

// NewResolver creates a Resolver.
func NewResolver(logger *slog.Logger, settle time.Duration) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger, settle: settle}
}

// Resolve identifies the CMP, attempts acceptance and reports the resulting
// cookie jar. It only returns an error when ctx is done; every other failure
// degrades to a less confident CookieInfo.
func (r *Resolver) Resolve(ctx context.Context, page Page) (*models.CookieInfo, error) {
	info := &models.CookieInfo{CookieKeys: []string{}}

	// ── 1. Identify the CMP ─────────────────────────────────────────
	cmp, found, err := r.detect(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Debug("live CMP detection failed, using static fallback", "error", err)
		cmp, found = r.detectFromHTML(ctx, page)
	}
	if found {
		info.Provider = cmp.Name
		info.Confidence = cmp.Confidence
	}

	// ── 2. Try the CMP's own accept controls ───────────────────────
	// CMP selectors are held to the same label check as generic ones;
	// several of them also match reject or settings buttons.
	if found {
		for _, sel := range cmp.AcceptSelectors {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if _, ok := r.clickAcceptLabel(ctx, page, sel); ok {
				info.Accepted = true
				info.Method = models.MethodCMPSpecific
				info.Element = sel
				break
			}
		}
	}

	// ── 3. Fall back to text matching on generic controls ──────────
	if !info.Accepted {
		for _, sel := range signatures.GenericAcceptSelectors {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if label, ok := r.clickAcceptLabel(ctx, page, sel); ok {
				info.Accepted = true
				info.Method = models.MethodTextBased
				info.Element = fmt.Sprintf("%s %q", sel, label)
				break
			}
		}
	}

	// ── 4. Let consent scripts react, then read the jar ────────────
	if info.Accepted && r.settle > 0 {
		select {
		case <-time.After(r.settle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		r.logger.Debug("reading cookies failed", "error", err)
	}
	summarizeCookies(info, cookies)

	r.logger.Debug("consent resolved",
		"provider", info.Provider,
		"accepted", info.Accepted,
		"method", info.Method,
		"cookies", info.CookieCount,
	)
	return info, nil
}

// detect walks the CMP table in priority order. A CMP matches when any of its
// selectors is present or any script src contains one of its hints.
// The error is non-nil only when every DOM query failed.
func (r *Resolver) detect(ctx context.Context, page Page) (signatures.CMP, bool, error) {
	scripts, scriptErr := page.ScriptSources(ctx)

	var (
		queries  int
		failures int
		lastErr  error
	)
	for _, cmp := range signatures.CMPs {
		for _, sel := range cmp.Selectors {
			queries++
			ok, err := page.Has(ctx, sel)
			if err != nil {
				failures++
				lastErr = err
				continue
			}
			if ok {
				return cmp, true, nil
			}
		}
		if scriptErr == nil && matchesScript(cmp, scripts) {
			return cmp, true, nil
		}
	}

	if queries > 0 && failures == queries {
		return signatures.CMP{}, false, lastErr
	}
	return signatures.CMP{}, false, nil
}

func (r *Resolver) detectFromHTML(ctx context.Context, page Page) (signatures.CMP, bool) {
	html, err := page.HTML(ctx)
	if err != nil {
		return signatures.CMP{}, false
	}
	cmp, ok, err := DetectStatic(html)
	if err != nil {
		r.logger.Debug("static CMP detection failed", "error", err)
		return signatures.CMP{}, false
	}
	return cmp, ok
}

func matchesScript(cmp signatures.CMP, scripts []string) bool {
	for _, src := range scripts {
		for _, hint := range cmp.ScriptHints {
			if strings.Contains(src, hint) {
				return true
			}
		}
	}
	return false
}

// clickAcceptLabel clicks the first visible element under sel whose label
// reads as an accept phrase, returning that label.
func (r *Resolver) clickAcceptLabel(ctx context.Context, page Page, sel string) (string, bool) {
	els, err := page.Elements(ctx, sel)
	if err != nil {
		return "", false
	}
	for i, el := range els {
		if i >= maxCandidates {
			break
		}
		text, err := el.Text()
		if err != nil || !isAcceptLabel(text) {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		if err := el.Click(); err != nil {
			r.logger.Debug("accept click failed", "selector", sel, "error", err)
			continue
		}
		return strings.TrimSpace(text), true
	}
	return "", false
}

// summarizeCookies fills the cookie count, distinct names and distinct
// domain count.
func summarizeCookies(info *models.CookieInfo, cookies []Cookie) {
	names := make(map[string]struct{}, len(cookies))
	domains := make(map[string]struct{}, len(cookies))
	for _, c := range cookies {
		if _, ok := names[c.Name]; !ok {
			names[c.Name] = struct{}{}
			info.CookieKeys = append(info.CookieKeys, c.Name)
		}
		d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		if d != "" {
			domains[d] = struct{}{}
		}
	}
	info.CookieCount = len(cookies)
	info.CookieDomains = len(domains)
}
