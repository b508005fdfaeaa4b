// Package signatures holds the static detection tables used by the consent
// resolver and the tag/pixel extractors: regular expressions, CSS selectors,
// script-source hints and accept phrases. Nothing in here performs I/O.
package signatures

import (
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/tagscope/models"
)

// CMP describes one consent management platform.
type CMP struct {
	// Name is the provider name reported in CookieInfo.
	Name string

	// Confidence is reported when this CMP matches.
	Confidence models.Confidence

	// Selectors identify the CMP's banner or root node in the DOM.
	Selectors []string

	// ScriptHints are substrings of <script src> URLs loaded by the CMP.
	ScriptHints []string

	// AcceptSelectors target the CMP's own "accept all" controls.
	AcceptSelectors []string
}

// CMPs is ordered by priority. The first entry that matches wins.
var CMPs = []CMP{
	{
		Name:            "OneTrust",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{"#onetrust-banner-sdk", "#onetrust-consent-sdk", "#ot-sdk-btn"},
		ScriptHints:     []string{"cdn.cookielaw.org", "otSDKStub.js", "optanon.blob.core.windows.net"},
		AcceptSelectors: []string{"#onetrust-accept-btn-handler", "#accept-recommended-btn-handler"},
	},
	{
		Name:       "Cookiebot",
		Confidence: models.ConfidenceHigh,
		Selectors:  []string{"#CybotCookiebotDialog", "#CookiebotWidget"},
		ScriptHints: []string{
			"consent.cookiebot.com", "consent.cookiebot.eu",
		},
		AcceptSelectors: []string{
			"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
			"#CybotCookiebotDialogBodyButtonAccept",
		},
	},
	{
		Name:            "Usercentrics",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{"#usercentrics-root", "#usercentrics-cmp-ui", "#uc-banner-modal"},
		ScriptHints:     []string{"app.usercentrics.eu", "web.cmp.usercentrics.eu"},
		AcceptSelectors: []string{`button[data-testid="uc-accept-all-button"]`, "#accept"},
	},
	{
		Name:            "Didomi",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{"#didomi-host", "#didomi-notice"},
		ScriptHints:     []string{"sdk.privacy-center.org"},
		AcceptSelectors: []string{"#didomi-notice-agree-button"},
	},
	{
		Name:            "TrustArc",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{"#truste-consent-track", "#consent_blackbar", ".truste_box_overlay"},
		ScriptHints:     []string{"consent.trustarc.com", "consent.truste.com"},
		AcceptSelectors: []string{"#truste-consent-button"},
	},
	{
		Name:            "Quantcast Choice",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{".qc-cmp2-container", "#qc-cmp2-ui"},
		ScriptHints:     []string{"cmp.quantcast.com", "quantcast.mgr.consensu.org"},
		AcceptSelectors: []string{`.qc-cmp2-summary-buttons button[mode="primary"]`},
	},
	{
		Name:            "iubenda",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{"#iubenda-cs-banner"},
		ScriptHints:     []string{"cdn.iubenda.com", "cs.iubenda.com"},
		AcceptSelectors: []string{".iubenda-cs-accept-btn"},
	},
	{
		Name:            "CookieYes",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{".cky-consent-container", "#cookie-law-info-bar"},
		ScriptHints:     []string{"cdn-cookieyes.com"},
		AcceptSelectors: []string{".cky-btn-accept", "#cookie_action_close_header"},
	},
	{
		Name:            "Osano",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{".osano-cm-window", ".osano-cm-dialog"},
		ScriptHints:     []string{"cmp.osano.com"},
		AcceptSelectors: []string{".osano-cm-accept-all", ".osano-cm-accept"},
	},
	{
		Name:            "Complianz",
		Confidence:      models.ConfidenceHigh,
		Selectors:       []string{"#cmplz-cookiebanner-container", ".cmplz-cookiebanner"},
		ScriptHints:     []string{"complianz-gdpr", "cmplz"},
		AcceptSelectors: []string{".cmplz-accept"},
	},
	{
		Name:            "Klaro",
		Confidence:      models.ConfidenceLow,
		Selectors:       []string{".klaro .cookie-notice", "#klaro"},
		ScriptHints:     []string{"klaro.js", "cdn.kiprotect.com/klaro"},
		AcceptSelectors: []string{".klaro .cm-btn-success"},
	},
	{
		Name:            "Shopify Customer Privacy",
		Confidence:      models.ConfidenceLow,
		Selectors:       []string{"#shopify-pc__banner"},
		ScriptHints:     []string{"consent-tracking-api", "customer-privacy"},
		AcceptSelectors: []string{"#shopify-pc__banner__btn-accept"},
	},
	{
		Name:       "Generic cookie banner",
		Confidence: models.ConfidenceLow,
		Selectors: []string{
			`[id*="cookie-banner"]`, `[class*="cookie-banner"]`,
			`[id*="cookie-consent"]`, `[class*="cookie-consent"]`,
			`[id*="cookie-notice"]`, `[class*="cookie-notice"]`,
			`[aria-label*="cookie"]`, `[aria-label*="Cookie"]`,
		},
	},
}

// GenericAcceptSelectors are tried after the CMP-specific selectors.
var GenericAcceptSelectors = []string{
	"button",
	`[role="button"]`,
	`a[href="#"]`,
	`input[type="button"]`,
	`input[type="submit"]`,
	`[id*="accept"]`,
	`[class*="accept"]`,
}

// CompiledCMP pairs a CMP with its pre-compiled selectors for static matching.
type CompiledCMP struct {
	CMP
	Matchers []cascadia.Sel
}

var compiledCMPs = compileCMPs()

func compileCMPs() []CompiledCMP {
	out := make([]CompiledCMP, 0, len(CMPs))
	for _, c := range CMPs {
		cc := CompiledCMP{CMP: c}
		for _, s := range c.Selectors {
			if sel, err := cascadia.Parse(s); err == nil {
				cc.Matchers = append(cc.Matchers, sel)
			}
		}
		out = append(out, cc)
	}
	return out
}

// CompiledCMPs returns the CMP table with compiled selectors, in priority order.
func CompiledCMPs() []CompiledCMP {
	return compiledCMPs
}

// CMPByName looks up a CMP entry by provider name.
func CMPByName(name string) (CMP, bool) {
	for _, c := range CMPs {
		if c.Name == name {
			return c, true
		}
	}
	return CMP{}, false
}
