package extractor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/signatures"
)

// ExtractPixels detects the marketing pixel channels and analytics platforms
// on a page. eval may be nil; when set, live JS globals are merged into the
// static results and a dataLayer snapshot is returned. No failure here is
// fatal: an evaluator error leaves the static results intact.
func ExtractPixels(ctx context.Context, html string, eval Evaluator, network []string) (*models.PixelInfo, *models.DataLayerSnapshot) {
	info := &models.PixelInfo{}
	initChannel(&info.Meta)
	initChannel(&info.TikTok)
	initChannel(&info.LinkedIn)
	initChannel(&info.GoogleAds)
	initChannel(&info.GA4)

	applyPatterns(&info.Meta, signatures.MetaPatterns, html)
	applyPatterns(&info.TikTok, signatures.TikTokPatterns, html)
	applyPatterns(&info.LinkedIn, signatures.LinkedInPatterns, html)
	applyPatterns(&info.GoogleAds, signatures.GoogleAdsPatterns, html)
	applyPatterns(&info.GA4, signatures.GA4Patterns, html)

	detectPlatforms(info, html, network)

	if eval == nil {
		return info, nil
	}
	snapshot, err := applyRuntime(ctx, info, eval)
	if err != nil {
		slog.Debug("runtime pixel inspection failed, keeping static results", "error", err)
	}
	return info, snapshot
}

func initChannel(c *models.Channel) {
	c.IDs = []string{}
	c.Methods = []string{}
}

// applyPatterns runs every pattern of a channel independently, in order.
func applyPatterns(c *models.Channel, patterns []signatures.PixelPattern, html string) {
	for _, p := range patterns {
		for _, m := range p.Regex.FindAllStringSubmatch(html, -1) {
			c.AddID(p.ID(m), p.Method)
		}
	}
}

// detectPlatforms flags each platform when either the document or the
// observed network traffic carries its signature.
func detectPlatforms(info *models.PixelInfo, html string, network []string) {
	for _, sig := range signatures.Platforms {
		target := platformField(info, sig.Name)
		if target == nil {
			continue
		}
		for _, re := range sig.HTML {
			if re.MatchString(html) {
				target.Mark("html")
				break
			}
		}
		if networkMatches(network, sig.Network) {
			target.Mark("network")
		}
	}
}

func networkMatches(requests, needles []string) bool {
	for _, r := range requests {
		lr := strings.ToLower(r)
		for _, n := range needles {
			if strings.Contains(lr, n) {
				return true
			}
		}
	}
	return false
}

func platformField(info *models.PixelInfo, name string) *models.Platform {
	switch name {
	case signatures.PlatformAmplitude:
		return &info.Amplitude
	case signatures.PlatformMixpanel:
		return &info.Mixpanel
	case signatures.PlatformTripleWhale:
		return &info.TripleWhale
	default:
		return nil
	}
}
