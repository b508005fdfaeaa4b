package models

import "time"

// ScanResult is the root aggregate produced by one scan.
// It is created fresh per scan and must not be mutated after it is returned.
type ScanResult struct {
	// URL is the scanned target as supplied by the caller.
	URL string `json:"url"`

	// Success is false only when a critical stage failed.
	Success bool `json:"success"`

	// Error carries the human-readable reason when Success is false.
	Error string `json:"error,omitempty"`

	Page        PageInfo           `json:"page"`
	Cookies     *CookieInfo        `json:"cookieInfo,omitempty"`
	Performance *PerformanceInfo   `json:"performanceInfo,omitempty"`
	Gtm         *GtmInfo           `json:"gtmInfo,omitempty"`
	Tagstack    *TagstackInfo      `json:"tagstackInfo,omitempty"`
	Pixels      *PixelInfo         `json:"pixelInfo,omitempty"`
	DataLayer   *DataLayerSnapshot `json:"dataLayer,omitempty"`
	Scores      *Scores            `json:"scores,omitempty"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	// Stages records what happened in each pipeline stage, in order.
	Stages []StageReport `json:"stages,omitempty"`
}

// PageInfo holds page-level metadata read from the rendered document.
type PageInfo struct {
	Title       string `json:"title"`
	FinalURL    string `json:"finalUrl,omitempty"`
	StatusCode  int    `json:"statusCode,omitempty"`
	ScriptCount int    `json:"scriptCount"`
	LinkCount   int    `json:"linkCount"`
	ImageCount  int    `json:"imageCount"`
	CookieCount int    `json:"cookieCount"`
}

// StageReport is the audit record of one pipeline stage.
type StageReport struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Critical   bool   `json:"critical"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Confidence grades how sure the consent resolver is about a CMP.
type Confidence string

const (
	ConfidenceNone Confidence = ""
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Consent resolution methods.
const (
	MethodCMPSpecific = "cmp-specific"
	MethodTextBased   = "text-based"
)

// CookieInfo is the consent resolver's output.
type CookieInfo struct {
	Accepted      bool       `json:"accepted"`
	Provider      string     `json:"provider,omitempty"`
	Confidence    Confidence `json:"confidence,omitempty"`
	Method        string     `json:"method,omitempty"`
	Element       string     `json:"element,omitempty"`
	CookieCount   int        `json:"cookieCount"`
	CookieKeys    []string   `json:"cookieKeys"`
	CookieDomains int        `json:"cookieDomains"`
}

// HasCMP reports whether a consent management platform was identified.
func (c *CookieInfo) HasCMP() bool {
	return c != nil && c.Provider != ""
}

// PerformanceInfo is the sample returned by the performance collaborator.
// Timings are milliseconds unless noted.
type PerformanceInfo struct {
	PerformanceScore       int     `json:"performanceScore"`
	AccessibilityScore     int     `json:"accessibilityScore"`
	BestPracticesScore     int     `json:"bestPracticesScore"`
	SEOScore               int     `json:"seoScore"`
	FirstContentfulPaint   float64 `json:"firstContentfulPaint"`
	LargestContentfulPaint float64 `json:"largestContentfulPaint"`
	FirstInputDelay        float64 `json:"firstInputDelay"`
	CumulativeLayoutShift  float64 `json:"cumulativeLayoutShift"`
	TotalBlockingTime      float64 `json:"totalBlockingTime"`
	SpeedIndex             float64 `json:"speedIndex"`
	TimeToInteractive      float64 `json:"timeToInteractive"`
	LoadTime               float64 `json:"loadTime"` // seconds
	TimeToFirstByte        float64 `json:"timeToFirstByte"`
	DOMContentLoaded       float64 `json:"domContentLoaded"`

	// Source is "pagespeed" for a live measurement and "default" for the
	// fixed fallback sample.
	Source string `json:"source"`
}

// GtmInfo is the tag container extractor's output.
type GtmInfo struct {
	Found      bool     `json:"found"`
	Containers []string `json:"containers"`
	Count      int      `json:"count"`

	// Primary is the first discovered container, empty when none.
	Primary string `json:"primary,omitempty"`

	// ConsentMode is set when the page itself issues Consent Mode commands.
	ConsentMode bool `json:"consentMode"`

	// ThirdPartyScripts lists the CDN scripts that were fetched for the
	// second discovery pass.
	ThirdPartyScripts []string `json:"thirdPartyScripts,omitempty"`
}

// ContainerStats summarises one enriched container.
type ContainerStats struct {
	Tags       int `json:"tags"`
	ActiveTags int `json:"activeTags"`
	PausedTags int `json:"pausedTags"`
	Variables  int `json:"variables"`
	Triggers   int `json:"triggers"`
}

// Detected-id channel names.
const (
	ChannelGA4       = "ga4"
	ChannelFacebook  = "facebookPixel"
	ChannelGoogleAds = "googleAds"
	ChannelTikTok    = "tiktokPixel"
	ChannelLinkedIn  = "linkedinPixel"
)

// TagstackInfo is the normalized enrichment result.
type TagstackInfo struct {
	Containers         map[string]ContainerStats `json:"containers"`
	ConsentModeV2      bool                      `json:"consentModeV2"`
	CMP                string                    `json:"cmp,omitempty"`
	ConsentDefaults    map[string]string         `json:"consentDefaults,omitempty"`
	DetectedIDs        DetectedIDs               `json:"detectedIds"`
	ServerSideTracking bool                      `json:"serverSideTracking"`
}

// TotalStats sums the stats of every enriched container.
func (t *TagstackInfo) TotalStats() ContainerStats {
	var total ContainerStats
	if t == nil {
		return total
	}
	for _, s := range t.Containers {
		total.Tags += s.Tags
		total.ActiveTags += s.ActiveTags
		total.PausedTags += s.PausedTags
		total.Variables += s.Variables
		total.Triggers += s.Triggers
	}
	return total
}

// DetectedIDs maps a channel name to an ordered set of distinct ids.
type DetectedIDs map[string][]string

// Add appends id to channel unless it is already present.
// It reports whether the id was new.
func (d DetectedIDs) Add(channel, id string) bool {
	if id == "" {
		return false
	}
	for _, existing := range d[channel] {
		if existing == id {
			return false
		}
	}
	d[channel] = append(d[channel], id)
	return true
}

// Primary returns the first id discovered for channel.
func (d DetectedIDs) Primary(channel string) string {
	if ids := d[channel]; len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// Channel is one marketing pixel channel.
type Channel struct {
	Found   bool     `json:"found"`
	IDs     []string `json:"ids"`
	Primary string   `json:"primary,omitempty"`

	// Methods records the provenance of every signal, in discovery order.
	Methods []string `json:"methods"`
}

// AddID records id (deduplicated) and its provenance method.
func (c *Channel) AddID(id, method string) {
	c.AddMethod(method)
	if id == "" {
		return
	}
	for _, existing := range c.IDs {
		if existing == id {
			return
		}
	}
	c.IDs = append(c.IDs, id)
	c.Found = true
	if c.Primary == "" {
		c.Primary = id
	}
}

// AddMethod records a provenance tag once.
func (c *Channel) AddMethod(method string) {
	if method == "" {
		return
	}
	for _, m := range c.Methods {
		if m == method {
			return
		}
	}
	c.Methods = append(c.Methods, method)
}

// Platform is an advanced analytics or attribution platform.
type Platform struct {
	Found bool `json:"found"`

	// Sources lists "html", "network" and/or "runtime".
	Sources []string `json:"sources,omitempty"`
}

// Mark flags the platform as found via source.
func (p *Platform) Mark(source string) {
	p.Found = true
	for _, s := range p.Sources {
		if s == source {
			return
		}
	}
	p.Sources = append(p.Sources, source)
}

// PixelInfo is the pixel and platform extractor's output.
type PixelInfo struct {
	Meta      Channel `json:"meta"`
	TikTok    Channel `json:"tiktok"`
	LinkedIn  Channel `json:"linkedin"`
	GoogleAds Channel `json:"googleAds"`
	GA4       Channel `json:"ga4"`

	Amplitude   Platform `json:"amplitude"`
	Mixpanel    Platform `json:"mixpanel"`
	TripleWhale Platform `json:"tripleWhale"`
}

// PixelChannelsFound counts the four marketing pixel channels that were found.
func (p *PixelInfo) PixelChannelsFound() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, c := range []Channel{p.Meta, p.TikTok, p.LinkedIn, p.GoogleAds} {
		if c.Found {
			n++
		}
	}
	return n
}

// PlatformsFound counts the analytics/attribution platforms that were found.
func (p *PixelInfo) PlatformsFound() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, pl := range []Platform{p.Amplitude, p.Mixpanel, p.TripleWhale} {
		if pl.Found {
			n++
		}
	}
	return n
}

// DataLayerSnapshot is a summary of window.dataLayer at extraction time.
type DataLayerSnapshot struct {
	Length          int               `json:"length"`
	Events          []string          `json:"events"`
	ConsentCommands int               `json:"consentCommands"`
	ConsentDefaults map[string]string `json:"consentDefaults,omitempty"`
}

// Scores are the four category scores plus the overall score, all in [0,100].
type Scores struct {
	Performance int `json:"performance"`
	Privacy     int `json:"privacy"`
	Tracking    int `json:"tracking"`
	Compliance  int `json:"compliance"`
	Overall     int `json:"overall"`
}
