package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ysmood/gson"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/signatures"
)

// Evaluator runs a JS function expression in the page and returns its
// JSON-serialized result.
type Evaluator func(ctx context.Context, js string) (gson.JSON, error)

// maxDataLayerEvents caps the distinct event names kept in a snapshot.
const maxDataLayerEvents = 50

// runtimeProbe collects SDK state the static markup does not show. Every
// section is guarded so one broken vendor global cannot hide the others.
var runtimeProbe = buildRuntimeProbe()

func buildRuntimeProbe() string {
	var platforms strings.Builder
	for _, p := range signatures.Platforms {
		fmt.Fprintf(&platforms, "    out.platforms[%q] = typeof window[%q] !== 'undefined';\n", p.Name, p.Global)
	}

	return `() => {
  const out = {meta: [], tiktok: [], linkedin: [], googleAds: [], ga4: [], platforms: {}, dataLayer: null};
  try {
    if (window.fbq && typeof window.fbq.getState === 'function') {
      (window.fbq.getState().pixels || []).forEach(p => { if (p && p.id) out.meta.push(String(p.id)); });
    }
  } catch (e) {}
  try {
    if (window.ttq && window.ttq._i) Object.keys(window.ttq._i).forEach(k => out.tiktok.push(k));
  } catch (e) {}
  try {
    const ids = window._linkedin_data_partner_ids;
    if (Array.isArray(ids)) ids.forEach(i => out.linkedin.push(String(i)));
    if (window._linkedin_partner_id) out.linkedin.push(String(window._linkedin_partner_id));
  } catch (e) {}
  try {
    if (window.google_tag_manager) Object.keys(window.google_tag_manager).forEach(k => {
      if (/^AW-/.test(k)) out.googleAds.push(k);
      else if (/^G-/.test(k)) out.ga4.push(k);
    });
  } catch (e) {}
  try {
` + platforms.String() + `  } catch (e) {}
  try {
    const dl = window.dataLayer;
    if (Array.isArray(dl)) {
      const snap = {length: dl.length, events: [], consentCommands: 0, consentDefaults: {}};
      dl.forEach(entry => {
        if (!entry) return;
        if (typeof entry.event === 'string' && snap.events.indexOf(entry.event) < 0) snap.events.push(entry.event);
        if (entry[0] === 'consent') {
          snap.consentCommands++;
          if (entry[1] === 'default' && entry[2] && typeof entry[2] === 'object') {
            Object.keys(entry[2]).forEach(k => {
              if (typeof entry[2][k] === 'string') snap.consentDefaults[k] = entry[2][k];
            });
          }
        }
      });
      out.dataLayer = snap;
    }
  } catch (e) {}
  return out;
}`
}

// applyRuntime merges live SDK state into info.
func applyRuntime(ctx context.Context, info *models.PixelInfo, eval Evaluator) (*models.DataLayerSnapshot, error) {
	res, err := eval(ctx, runtimeProbe)
	if err != nil {
		return nil, err
	}

	for _, v := range res.Get("meta").Arr() {
		if id := v.Str(); signatures.NumericPixelID.MatchString(id) {
			info.Meta.AddID(id, "runtime-fbq-state")
		}
	}
	for _, v := range res.Get("tiktok").Arr() {
		if id := v.Str(); signatures.TikTokPixelID.MatchString(id) {
			info.TikTok.AddID(id, "runtime-ttq")
		}
	}
	for _, v := range res.Get("linkedin").Arr() {
		if id := v.Str(); signatures.NumericPixelID.MatchString(id) {
			info.LinkedIn.AddID(id, "runtime-partner-ids")
		}
	}
	for _, v := range res.Get("googleAds").Arr() {
		if id := signatures.ConversionID.FindString(v.Str()); id != "" {
			info.GoogleAds.AddID(id, "runtime-tag-registry")
		}
	}
	for _, v := range res.Get("ga4").Arr() {
		if id := v.Str(); signatures.MeasurementID.MatchString(id) {
			info.GA4.AddID(id, "runtime-tag-registry")
		}
	}

	platforms := res.Get("platforms")
	for _, sig := range signatures.Platforms {
		if platforms.Get(sig.Name).Bool() {
			if target := platformField(info, sig.Name); target != nil {
				target.Mark("runtime")
			}
		}
	}

	return dataLayerSnapshot(res.Get("dataLayer")), nil
}

func dataLayerSnapshot(dl gson.JSON) *models.DataLayerSnapshot {
	if dl.Nil() {
		return nil
	}
	snap := &models.DataLayerSnapshot{
		Length:          dl.Get("length").Int(),
		Events:          []string{},
		ConsentCommands: dl.Get("consentCommands").Int(),
	}
	for _, e := range dl.Get("events").Arr() {
		if len(snap.Events) >= maxDataLayerEvents {
			break
		}
		snap.Events = append(snap.Events, e.Str())
	}
	defaults := dl.Get("consentDefaults").Map()
	if len(defaults) > 0 {
		snap.ConsentDefaults = make(map[string]string, len(defaults))
		for k, v := range defaults {
			snap.ConsentDefaults[k] = v.Str()
		}
	}
	return snap
}
