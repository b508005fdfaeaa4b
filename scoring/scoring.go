// Package scoring reduces a ScanResult to the four category scores and the
// overall score. Every function here is pure.
package scoring

import (
	"math"

	"github.com/use-agent/tagscope/models"
)

// cmpLevel grades the consent platform evidence of a scan.
type cmpLevel int

const (
	cmpNone cmpLevel = iota
	cmpLow           // low confidence, or a provider name without confidence
	cmpHigh
)

// Score computes all scores for r. A nil result scores zero everywhere.
func Score(r *models.ScanResult) models.Scores {
	if r == nil {
		return models.Scores{}
	}
	s := models.Scores{
		Performance: clamp(Performance(r)),
		Privacy:     clamp(Privacy(r)),
		Tracking:    clamp(Tracking(r)),
		Compliance:  clamp(Compliance(r)),
	}
	mean := float64(s.Performance+s.Privacy+s.Tracking+s.Compliance) / 4
	s.Overall = clamp(int(math.Round(mean)))
	return s
}

// Performance is the sample's overall score, or 0 without a sample.
func Performance(r *models.ScanResult) int {
	if r.Performance == nil {
		return 0
	}
	return r.Performance.PerformanceScore
}

// Privacy rewards a visible consent platform, Consent Mode and a small,
// first-party cookie footprint. The result is not clamped.
func Privacy(r *models.ScanResult) int {
	score := 0
	level := cmpOf(r)
	cookies := r.Cookies

	switch level {
	case cmpHigh:
		score += 30
	case cmpLow:
		score += 15
	}

	if consentMode(r) {
		score += 25
	} else {
		score -= 10
	}

	if cookies != nil {
		// The cookie-count table replaces the flat "count disclosed" bonus:
		// any disclosed count lands in exactly one bucket.
		switch n := cookies.CookieCount; {
		case n >= 1 && n <= 10:
			score += 10
		case n >= 11 && n <= 20:
			score += 5
		case n > 50:
			score -= 10
		}

		if len(cookies.CookieKeys) > 0 {
			score += 5
		}

		switch d := cookies.CookieDomains; {
		case d >= 2 && d <= 3:
			score += 5
		case d > 3:
			score -= 5
		}

		if cookies.Accepted {
			switch level {
			case cmpHigh:
				score += 15
			case cmpLow:
				score += 5
			}
		}
	}
	return score
}

// Tracking rewards measurement maturity. The rule table is kept as is,
// including its platform short-circuits. The result is not clamped.
func Tracking(r *models.ScanResult) int {
	score := 0.0
	platforms := r.Pixels.PlatformsFound()

	switch {
	case platforms == 1:
		score += 25
	case platforms == 2:
		score += 30
	case platforms >= 3:
		score += 35
	case r.Gtm != nil && r.Gtm.Found:
		score += 25 + tagQualityBonus(r.Tagstack.TotalStats())
	}

	if consentMode(r) {
		score += 25
	}

	if r.Tagstack != nil && r.Tagstack.ServerSideTracking && platforms == 0 {
		score += 15
	}

	if platforms > 0 || (r.Pixels != nil && r.Pixels.GA4.Found) {
		score += 10
	}

	if platforms > 0 {
		score += 20
	} else {
		switch r.Pixels.PixelChannelsFound() {
		case 4:
			score += 20
		case 3:
			score += 15
		case 2:
			score += 10
		case 1:
			score += 5
		}
	}
	return int(math.Round(score))
}

// tagQualityBonus is up to +5 scaled by the active-tag ratio, reduced by
// the same bonus scaled by the paused-tag ratio.
func tagQualityBonus(s models.ContainerStats) float64 {
	if s.Tags <= 0 {
		return 0
	}
	total := float64(s.Tags)
	bonus := 5 * float64(s.ActiveTags) / total
	return bonus - bonus*float64(s.PausedTags)/total
}

// Compliance rewards consent enforcement. The result is not clamped.
func Compliance(r *models.ScanResult) int {
	score := 0
	level := cmpOf(r)

	if consentMode(r) {
		score += 20
	} else {
		score -= 15
	}

	switch level {
	case cmpHigh:
		score += 20
	case cmpLow:
		score += 10
	default:
		score -= 20
	}

	// Consent quality.
	switch {
	case level == cmpHigh:
		score += 30
	case level == cmpLow:
		score += 15
	case r.Cookies != nil && r.Cookies.Accepted:
		score += 5
	default:
		score -= 20
	}

	// Transparency.
	switch level {
	case cmpHigh:
		score += 20
	case cmpLow:
		score += 10
	}

	if t := r.Tagstack; t != nil {
		if t.ServerSideTracking {
			score += 10
		}
		if t.ConsentModeV2 && !pageConsentMode(r) {
			score += 5
		}
		if deniedDefaults(t.ConsentDefaults) >= 4 {
			score += 5
		}
	}
	return score
}

// cmpOf derives the CMP level from the consent resolver, falling back to a
// CMP named by enrichment.
func cmpOf(r *models.ScanResult) cmpLevel {
	if c := r.Cookies; c != nil {
		switch {
		case c.Confidence == models.ConfidenceHigh:
			return cmpHigh
		case c.Confidence == models.ConfidenceLow, c.Provider != "":
			return cmpLow
		}
	}
	if r.Tagstack != nil && r.Tagstack.CMP != "" {
		return cmpLow
	}
	return cmpNone
}

// pageConsentMode is the flag raised by the page's own Consent Mode calls.
func pageConsentMode(r *models.ScanResult) bool {
	return r.Gtm != nil && r.Gtm.ConsentMode
}

// consentMode is true when either the page or enrichment reports Consent Mode.
func consentMode(r *models.ScanResult) bool {
	return pageConsentMode(r) || (r.Tagstack != nil && r.Tagstack.ConsentModeV2)
}

func deniedDefaults(defaults map[string]string) int {
	n := 0
	for _, v := range defaults {
		if v == "denied" {
			n++
		}
	}
	return n
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
