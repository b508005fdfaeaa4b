package signatures

import "regexp"

// Platform names.
const (
	PlatformAmplitude   = "amplitude"
	PlatformMixpanel    = "mixpanel"
	PlatformTripleWhale = "tripleWhale"
)

// PlatformSignature detects one analytics or attribution platform.
type PlatformSignature struct {
	Name string

	// HTML patterns are matched against the rendered document.
	HTML []*regexp.Regexp

	// Network substrings are matched against observed request URLs.
	Network []string

	// Global is the window property the SDK installs.
	Global string
}

// Platforms is the platform table, in reporting order.
var Platforms = []PlatformSignature{
	{
		Name: PlatformAmplitude,
		HTML: []*regexp.Regexp{
			regexp.MustCompile(`cdn\.amplitude\.com/libs/`),
			regexp.MustCompile(`amplitude\.getInstance\(\)\.init\(`),
			regexp.MustCompile(`amplitude\.init\(\s*['"][a-f0-9]{32}['"]`),
		},
		Network: []string{"api.amplitude.com", "api2.amplitude.com", "cdn.amplitude.com"},
		Global:  "amplitude",
	},
	{
		Name: PlatformMixpanel,
		HTML: []*regexp.Regexp{
			regexp.MustCompile(`cdn\.mxpnl\.com/libs/mixpanel`),
			regexp.MustCompile(`mixpanel\.init\(\s*['"][a-f0-9]{32}['"]`),
		},
		Network: []string{"api-js.mixpanel.com", "api.mixpanel.com", "cdn.mxpnl.com"},
		Global:  "mixpanel",
	},
	{
		Name: PlatformTripleWhale,
		HTML: []*regexp.Regexp{
			regexp.MustCompile(`triplewhale\.com`),
			regexp.MustCompile(`TriplePixel\(`),
			regexp.MustCompile(`triplePixelData`),
		},
		Network: []string{"api.config-security.com", "triplewhale-pixel", "triplewhale.com"},
		Global:  "TriplePixel",
	},
}
