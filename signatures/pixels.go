package signatures

import "regexp"

// PixelPattern is one detection rule for a marketing pixel channel.
// When the regex has a capture group, the id is Prefix + group 1.
// A pattern without a group only records its method.
type PixelPattern struct {
	Method string
	Regex  *regexp.Regexp
	Prefix string
}

// ID returns the id carried by match, or "" for method-only patterns.
func (p PixelPattern) ID(match []string) string {
	if len(match) < 2 || match[1] == "" {
		return ""
	}
	return p.Prefix + match[1]
}

// queryPrefix matches the part of a query string before a given parameter,
// tolerating HTML-escaped ampersands.
const queryPrefix = `(?:[^"'\s<>]*?&(?:amp;)?)?`

// MetaPatterns detect the Meta (Facebook) pixel.
var MetaPatterns = []PixelPattern{
	{Method: "fbq-init", Regex: regexp.MustCompile(`fbq\(\s*['"]init['"]\s*,\s*['"]?(\d{10,20})`)},
	{Method: "signals-config", Regex: regexp.MustCompile(`connect\.facebook\.net/signals/config/(\d{10,20})`)},
	{Method: "noscript-pixel", Regex: regexp.MustCompile(`facebook\.com/tr/?\?` + queryPrefix + `id=(\d{10,20})`)},
	{Method: "data-attribute", Regex: regexp.MustCompile(`data-(?:fb|facebook|meta)-pixel(?:-id)?=["'](\d{10,20})`)},
	{Method: "fbevents-script", Regex: regexp.MustCompile(`connect\.facebook\.net/[a-z_A-Z]+/fbevents\.js`)},
	{Method: "cookie-name", Regex: regexp.MustCompile(`\b_fbp\b`)},
}

// TikTokPatterns detect the TikTok pixel.
var TikTokPatterns = []PixelPattern{
	{Method: "ttq-load", Regex: regexp.MustCompile(`ttq\.load\(\s*['"]([A-Z0-9]{15,25})['"]`)},
	{Method: "sdk-url", Regex: regexp.MustCompile(`analytics\.tiktok\.com/i18n/pixel/events\.js\?` + queryPrefix + `sdkid=([A-Z0-9]{15,25})`)},
	{Method: "data-attribute", Regex: regexp.MustCompile(`data-tiktok-pixel(?:-id)?=["']([A-Z0-9]{15,25})`)},
	{Method: "cookie-name", Regex: regexp.MustCompile(`\b_ttp\b`)},
}

// LinkedInPatterns detect the LinkedIn Insight tag.
var LinkedInPatterns = []PixelPattern{
	{Method: "partner-id", Regex: regexp.MustCompile(`_linkedin_partner_id\s*=\s*['"]?(\d{4,12})`)},
	{Method: "partner-ids-push", Regex: regexp.MustCompile(`_linkedin_data_partner_ids\.push\(\s*['"]?(\d{4,12})`)},
	{Method: "noscript-pixel", Regex: regexp.MustCompile(`px\.ads\.linkedin\.com/collect/?\?` + queryPrefix + `pid=(\d{4,12})`)},
	{Method: "insight-script", Regex: regexp.MustCompile(`snap\.licdn\.com/li\.lms-analytics/insight\.min\.js`)},
	{Method: "cookie-name", Regex: regexp.MustCompile(`\bli_fat_id\b`)},
}

// GoogleAdsPatterns detect Google Ads conversion tracking.
var GoogleAdsPatterns = []PixelPattern{
	{Method: "gtag-config", Regex: regexp.MustCompile(`gtag\(\s*['"]config['"]\s*,\s*['"](AW-[A-Z0-9]+)`)},
	{Method: "gtag-script", Regex: regexp.MustCompile(`googletagmanager\.com/gtag/js\?` + queryPrefix + `id=(AW-[A-Z0-9]+)`)},
	{Method: "conversion-pixel", Regex: regexp.MustCompile(`googleadservices\.com/pagead/conversion/(\d{6,12})`), Prefix: "AW-"},
	{Method: "viewthrough-conversion", Regex: regexp.MustCompile(`viewthroughconversion/(\d{6,12})`), Prefix: "AW-"},
	{Method: "send-to", Regex: regexp.MustCompile(`['"]?send_to['"]?\s*:\s*['"](AW-[A-Z0-9]+)`)},
	{Method: "cookie-name", Regex: regexp.MustCompile(`\b_gcl_aw\b`)},
}

// GA4Patterns detect Google Analytics 4 measurement ids.
var GA4Patterns = []PixelPattern{
	{Method: "gtag-config", Regex: regexp.MustCompile(`gtag\(\s*['"]config['"]\s*,\s*['"](G-[A-Z0-9]+)`)},
	{Method: "gtag-script", Regex: regexp.MustCompile(`googletagmanager\.com/gtag/js\?` + queryPrefix + `id=(G-[A-Z0-9]+)`)},
	{Method: "measurement-id", Regex: regexp.MustCompile(`['"]?measurement_id['"]?\s*:\s*['"](G-[A-Z0-9]+)`)},
}

// Parameter-level id shapes used when reading enriched container tags.
var (
	MeasurementID  = regexp.MustCompile(`^G-[A-Z0-9]+$`)
	ConversionID   = regexp.MustCompile(`AW-[A-Z0-9]+`)
	NumericPixelID = regexp.MustCompile(`^\d{4,20}$`)
	TikTokPixelID  = regexp.MustCompile(`^[A-Z0-9]{15,25}$`)
)
