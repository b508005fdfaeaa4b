// Package extractor finds tag-manager containers, marketing pixels and
// analytics platforms in a rendered page.
package extractor

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/signatures"
)

// ScriptFetcher downloads the body of a third-party script. The extractor
// never performs network I/O itself.
type ScriptFetcher func(ctx context.Context, scriptURL string) (string, error)

// maxThirdPartyScripts caps the second discovery pass.
const maxThirdPartyScripts = 5

// idSet is an insertion-ordered set of container ids.
type idSet struct {
	seen map[string]struct{}
	ids  []string
}

func newIDSet() *idSet {
	return &idSet{seen: make(map[string]struct{}), ids: []string{}}
}

func (s *idSet) add(id string) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
}

// addCanonical adds token only if it is already in canonical shape.
func (s *idSet) addCanonical(token string) {
	if signatures.GTMCanonical.MatchString(token) {
		s.add(token)
	}
}

// addNormalized canonicalizes token first, accepting bare ids.
func (s *idSet) addNormalized(token string) {
	if id, ok := signatures.NormalizeContainerID(token); ok {
		s.add(id)
	}
}

// ExtractContainers runs both discovery passes over html and returns the
// tag-manager summary. fetch may be nil, in which case the third-party pass
// is skipped. It never fails: fetch errors are logged and ignored.
func ExtractContainers(ctx context.Context, html, baseURL string, fetch ScriptFetcher) *models.GtmInfo {
	set := newIDSet()

	// ── Pass 1: static patterns over the document ──────────────────
	scanHTMLForContainers(html, set)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Debug("container extraction: parse failed", "error", err)
	}
	if doc != nil {
		doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
			scanInlineScript(s.Text(), set)
		})
	}

	info := &models.GtmInfo{
		ConsentMode: signatures.ConsentModeCall.MatchString(html),
	}

	// ── Pass 2: one hop into CDN loader scripts ────────────────────
	if fetch != nil && doc != nil {
		scripts := thirdPartyScripts(doc, html, baseURL)
		bodies := fetchAll(ctx, fetch, scripts)
		for i, body := range bodies {
			if body == "" {
				continue
			}
			info.ThirdPartyScripts = append(info.ThirdPartyScripts, scripts[i])
			scanLoaderScript(body, set)
		}
	}

	info.Containers = set.ids
	info.Count = len(set.ids)
	info.Found = info.Count > 0
	if info.Found {
		info.Primary = set.ids[0]
	}
	return info
}

func scanHTMLForContainers(html string, set *idSet) {
	for _, m := range signatures.GTMScriptURL.FindAllStringSubmatch(html, -1) {
		set.addCanonical(strings.ToUpper(m[1]))
	}
	for _, m := range signatures.GTMNoscriptURL.FindAllStringSubmatch(html, -1) {
		set.addCanonical(strings.ToUpper(m[1]))
	}
	for _, tok := range signatures.GTMBareToken.FindAllString(html, -1) {
		set.addCanonical(tok)
	}
	// Shopify's web-pixel bootstrap embeds "GT-XXXX" ids for the same container.
	for _, m := range signatures.GoogleTagIDs.FindAllStringSubmatch(html, -1) {
		for _, gt := range signatures.GoogleTagGT.FindAllStringSubmatch(m[1], -1) {
			set.addCanonical("GTM-" + gt[1])
		}
	}
}

func scanInlineScript(body string, set *idSet) {
	for _, m := range signatures.DataLayerPush.FindAllStringSubmatch(body, -1) {
		for _, tok := range signatures.GTMBareToken.FindAllString(m[1], -1) {
			set.addCanonical(tok)
		}
	}
	for _, tok := range signatures.GTMBareToken.FindAllString(body, -1) {
		set.addCanonical(tok)
	}
}

func scanLoaderScript(body string, set *idSet) {
	for _, m := range signatures.ConstGTMID.FindAllStringSubmatch(body, -1) {
		set.addNormalized(m[1])
	}
	for _, m := range signatures.GTMIDField.FindAllStringSubmatch(body, -1) {
		set.addNormalized(m[1])
	}
	for _, tok := range signatures.GTMBareToken.FindAllString(body, -1) {
		set.addCanonical(tok)
	}
}

// thirdPartyScripts lists loader URLs on a known CDN, resolved against
// baseURL. When none is linked but the page carries a shop_id, the loader URL
// is synthesized.
func thirdPartyScripts(doc *goquery.Document, html, baseURL string) []string {
	base, _ := url.Parse(baseURL)

	var out []string
	seen := make(map[string]struct{})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if len(out) >= maxThirdPartyScripts {
			return
		}
		src, _ := s.Attr("src")
		resolved := resolveURL(base, src)
		if resolved == nil || !signatures.IsCDNHost(resolved.Hostname()) {
			return
		}
		u := resolved.String()
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	})

	if len(out) == 0 {
		if m := signatures.ShopID.FindStringSubmatch(html); m != nil {
			out = append(out, signatures.ShopLoaderURL(m[1]))
		}
	}
	return out
}

func resolveURL(base *url.URL, ref string) *url.URL {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return u
}

// fetchAll downloads every script concurrently. The returned slice is
// index-aligned with urls; failed fetches leave an empty body.
func fetchAll(ctx context.Context, fetch ScriptFetcher, urls []string) []string {
	bodies := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			body, err := fetch(gctx, u)
			if err != nil {
				slog.Debug("third-party script fetch failed", "url", u, "error", err)
				return nil
			}
			bodies[i] = body
			return nil
		})
	}
	_ = g.Wait()
	return bodies
}
