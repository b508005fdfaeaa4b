package signatures

import (
	"fmt"
	"regexp"
	"strings"
)

// Tag-manager container patterns.
var (
	// GTMScriptURL captures the id query parameter of a gtm.js loader URL.
	GTMScriptURL = regexp.MustCompile(`googletagmanager\.com/gtm\.js\?(?:[^"'\s<>]*?&(?:amp;)?)?id=([A-Za-z0-9-]+)`)

	// GTMNoscriptURL captures the id of the no-script iframe fallback.
	GTMNoscriptURL = regexp.MustCompile(`googletagmanager\.com/ns\.html\?(?:[^"'\s<>]*?&(?:amp;)?)?id=([A-Za-z0-9-]+)`)

	// GTMBareToken matches a container token anywhere in text.
	GTMBareToken = regexp.MustCompile(`\bGTM-[A-Z0-9]+\b`)

	// GTMCanonical is the exact accepted shape of a container id.
	GTMCanonical = regexp.MustCompile(`^GTM-[A-Z0-9]{6,}$`)

	// GoogleTagIDs captures the array body of a "google_tag_ids" embedding.
	GoogleTagIDs = regexp.MustCompile(`"google_tag_ids"\s*:\s*\[([^\]]*)\]`)

	// GoogleTagGT captures the suffix of one "GT-XXXX" entry.
	GoogleTagGT = regexp.MustCompile(`"GT-([A-Z0-9]+)"`)

	// DataLayerPush captures the argument list of a dataLayer.push call.
	DataLayerPush = regexp.MustCompile(`dataLayer\.push\s*\(([^;]*?)\)`)

	// ConstGTMID captures a `const GTM_ID = '...'` assignment in loader scripts.
	ConstGTMID = regexp.MustCompile(`(?:const|let|var)\s+GTM_ID\s*=\s*['"]([A-Za-z0-9-]+)['"]`)

	// GTMIDField captures object-literal forms such as gtm_id: '...'.
	GTMIDField = regexp.MustCompile(`(?i)["']?gtm_?id["']?\s*[:=]\s*['"]([A-Za-z0-9-]{6,})['"]`)

	// ShopID captures a Shopify shop_id literal.
	ShopID = regexp.MustCompile(`["']?shop_id["']?\s*[:=]\s*["']?(\d{4,})`)

	// ConsentModeCall matches page-issued Consent Mode commands, both the
	// gtag() form and the raw dataLayer argument form.
	ConsentModeCall = regexp.MustCompile(`['"]consent['"]\s*,\s*['"](?:default|update)['"]`)

	bareContainerSuffix = regexp.MustCompile(`^[A-Z0-9]{6,}$`)
)

// CDNHosts are hosts that serve server-side tagging loaders which embed a
// container id in the script body.
var CDNHosts = map[string]struct{}{
	"stape.io":     {},
	"stape.net":    {},
	"stapecdn.com": {},
}

// ShopLoaderURLTemplate builds the Stape Shopify loader URL from a shop id.
const ShopLoaderURLTemplate = "https://stape.io/shopify/gtm-loader.js?shop_id=%s"

// ShopLoaderURL returns the synthesized loader URL for shopID.
func ShopLoaderURL(shopID string) string {
	return fmt.Sprintf(ShopLoaderURLTemplate, shopID)
}

// IsCDNHost checks if a hostname (or any parent domain) is a known loader CDN.
func IsCDNHost(host string) bool {
	host = strings.ToLower(host)
	if _, ok := CDNHosts[host]; ok {
		return true
	}
	// Walk parent domains ("load.eu.stape.io" → "eu.stape.io" → "stape.io").
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if _, ok := CDNHosts[host]; ok {
			return true
		}
	}
}

// NormalizeContainerID canonicalizes raw into GTM-XXXXXX form.
// Bare alphanumeric ids of six or more characters get the GTM- prefix.
func NormalizeContainerID(raw string) (string, bool) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(id, "GTM-") {
		if !bareContainerSuffix.MatchString(id) {
			return "", false
		}
		id = "GTM-" + id
	}
	if !GTMCanonical.MatchString(id) {
		return "", false
	}
	return id, true
}
