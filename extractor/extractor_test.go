package extractor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ysmood/gson"
)

func TestExtractContainers(t *testing.T) {
	t.Parallel()

	t.Run("html then third-party order", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
<script async src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC123"></script>
<script src="https://load.stape.io/loader.js"></script>
</head><body></body></html>`
		fetch := func(_ context.Context, u string) (string, error) {
			if u != "https://load.stape.io/loader.js" {
				t.Errorf("unexpected fetch %q", u)
			}
			return "(function(){ const GTM_ID = 'XYZ789'; })();", nil
		}

		info := ExtractContainers(context.Background(), html, "https://shop.example.com/", fetch)

		want := []string{"GTM-ABC123", "GTM-XYZ789"}
		if !reflect.DeepEqual(info.Containers, want) {
			t.Errorf("containers = %v, want %v", info.Containers, want)
		}
		if !info.Found || info.Count != 2 || info.Primary != "GTM-ABC123" {
			t.Errorf("found=%v count=%d primary=%q", info.Found, info.Count, info.Primary)
		}
		if len(info.ThirdPartyScripts) != 1 {
			t.Errorf("thirdPartyScripts = %v", info.ThirdPartyScripts)
		}
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		t.Parallel()

		html := `<script src="https://www.googletagmanager.com/gtm.js?id=GTM-ABC123"></script>
<noscript><iframe src="https://www.googletagmanager.com/ns.html?id=GTM-ABC123"></iframe></noscript>
<script>dataLayer.push({'gtm.start': new Date().getTime(), id: 'GTM-ABC123'});</script>`
		info := ExtractContainers(context.Background(), html, "https://example.com", nil)
		if !reflect.DeepEqual(info.Containers, []string{"GTM-ABC123"}) {
			t.Errorf("containers = %v", info.Containers)
		}
	})

	t.Run("rejects non-canonical tokens", func(t *testing.T) {
		t.Parallel()

		html := `<p>GTM-AB12 and GTM-abc123 and GTM-ABC123xyz</p>`
		info := ExtractContainers(context.Background(), html, "", nil)
		if info.Found || len(info.Containers) != 0 {
			t.Errorf("expected nothing, got %v", info.Containers)
		}
		if info.Containers == nil {
			t.Error("containers should be empty, not nil")
		}
	})

	t.Run("google tag ids rewritten", func(t *testing.T) {
		t.Parallel()

		html := `<script>var cfg = {"google_tag_ids":["GT-KQ8M2ZP","GT-WXYZ99"]};</script>`
		info := ExtractContainers(context.Background(), html, "", nil)
		want := []string{"GTM-KQ8M2ZP", "GTM-WXYZ99"}
		if !reflect.DeepEqual(info.Containers, want) {
			t.Errorf("containers = %v, want %v", info.Containers, want)
		}
	})

	t.Run("relative cdn url resolved", func(t *testing.T) {
		t.Parallel()

		var got string
		html := `<script src="//cdn.stapecdn.com/widget.js"></script>`
		fetch := func(_ context.Context, u string) (string, error) {
			got = u
			return `window.cfg = {gtmId: "K7LMN2Q"};`, nil
		}
		info := ExtractContainers(context.Background(), html, "https://example.com/page", fetch)
		if got != "https://cdn.stapecdn.com/widget.js" {
			t.Errorf("fetched %q", got)
		}
		if !reflect.DeepEqual(info.Containers, []string{"GTM-K7LMN2Q"}) {
			t.Errorf("containers = %v", info.Containers)
		}
	})

	t.Run("shop id synthesizes loader", func(t *testing.T) {
		t.Parallel()

		var got string
		html := `<script>var meta = {"shop_id": 55512345};</script>`
		fetch := func(_ context.Context, u string) (string, error) {
			got = u
			return "", errors.New("not found")
		}
		info := ExtractContainers(context.Background(), html, "https://example.com", fetch)
		if !strings.Contains(got, "shop_id=55512345") {
			t.Errorf("fetched %q, want synthesized loader", got)
		}
		if info.Found || len(info.ThirdPartyScripts) != 0 {
			t.Errorf("failed fetch should not contribute: %+v", info)
		}
	})

	t.Run("fetch failure ignored", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		html := `GTM-ABC123 <script src="https://a.stape.io/x.js"></script><script src="https://b.stape.io/y.js"></script>`
		fetch := func(_ context.Context, u string) (string, error) {
			calls.Add(1)
			if strings.Contains(u, "a.stape.io") {
				return "", errors.New("timeout")
			}
			return "const GTM_ID = 'GTM-QQQ777';", nil
		}
		info := ExtractContainers(context.Background(), html, "https://example.com", fetch)
		if calls.Load() != 2 {
			t.Errorf("fetch called %d times, want 2", calls.Load())
		}
		want := []string{"GTM-ABC123", "GTM-QQQ777"}
		if !reflect.DeepEqual(info.Containers, want) {
			t.Errorf("containers = %v, want %v", info.Containers, want)
		}
	})

	t.Run("consent mode", func(t *testing.T) {
		t.Parallel()

		html := `<script>gtag('consent', 'default', {ad_storage: 'denied'});</script>`
		if !ExtractContainers(context.Background(), html, "", nil).ConsentMode {
			t.Error("expected consent mode")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		html := `GTM-BBB222 GTM-AAA111 <iframe src="https://www.googletagmanager.com/ns.html?id=GTM-CCC333"></iframe>`
		first := ExtractContainers(context.Background(), html, "", nil)
		second := ExtractContainers(context.Background(), html, "", nil)
		if !reflect.DeepEqual(first.Containers, second.Containers) {
			t.Errorf("not idempotent: %v vs %v", first.Containers, second.Containers)
		}
	})
}

func TestExtractPixels(t *testing.T) {
	t.Parallel()

	t.Run("google ads gtag config", func(t *testing.T) {
		t.Parallel()

		info, snap := ExtractPixels(context.Background(), `<script>gtag('config','AW-123ABC');</script>`, nil, nil)
		if !info.GoogleAds.Found {
			t.Fatal("expected googleAds found")
		}
		if !reflect.DeepEqual(info.GoogleAds.IDs, []string{"AW-123ABC"}) {
			t.Errorf("ids = %v", info.GoogleAds.IDs)
		}
		if info.GoogleAds.Primary != "AW-123ABC" {
			t.Errorf("primary = %q", info.GoogleAds.Primary)
		}
		if snap != nil {
			t.Error("no evaluator should mean no dataLayer snapshot")
		}
	})

	t.Run("every channel", func(t *testing.T) {
		t.Parallel()

		html := `
<script>
fbq('init', '1234567890123');
ttq.load('C4ABCDEFGHIJKLMNOPQR');
_linkedin_partner_id = "445566";
gtag('config', 'G-ABCDEF1234');
</script>
<noscript><img src="https://www.facebook.com/tr?id=1234567890123&ev=PageView"></noscript>
<img src="https://px.ads.linkedin.com/collect/?pid=778899&fmt=gif">
<img src="https://googleads.g.doubleclick.net/pagead/viewthroughconversion/987654321/">`
		info, _ := ExtractPixels(context.Background(), html, nil, nil)

		if !reflect.DeepEqual(info.Meta.IDs, []string{"1234567890123"}) {
			t.Errorf("meta ids = %v", info.Meta.IDs)
		}
		if !reflect.DeepEqual(info.Meta.Methods, []string{"fbq-init", "noscript-pixel"}) {
			t.Errorf("meta methods = %v", info.Meta.Methods)
		}
		if info.TikTok.Primary != "C4ABCDEFGHIJKLMNOPQR" {
			t.Errorf("tiktok primary = %q", info.TikTok.Primary)
		}
		if !reflect.DeepEqual(info.LinkedIn.IDs, []string{"445566", "778899"}) {
			t.Errorf("linkedin ids = %v", info.LinkedIn.IDs)
		}
		if !reflect.DeepEqual(info.GoogleAds.IDs, []string{"AW-987654321"}) {
			t.Errorf("googleAds ids = %v", info.GoogleAds.IDs)
		}
		if info.GA4.Primary != "G-ABCDEF1234" {
			t.Errorf("ga4 primary = %q", info.GA4.Primary)
		}
		if got := info.PixelChannelsFound(); got != 4 {
			t.Errorf("PixelChannelsFound = %d, want 4", got)
		}
	})

	t.Run("method only pattern does not mark found", func(t *testing.T) {
		t.Parallel()

		info, _ := ExtractPixels(context.Background(), `document.cookie.indexOf("_fbp=")`, nil, nil)
		if info.Meta.Found {
			t.Error("cookie reference alone must not mark the channel found")
		}
		if !reflect.DeepEqual(info.Meta.Methods, []string{"cookie-name"}) {
			t.Errorf("methods = %v", info.Meta.Methods)
		}
	})

	t.Run("platforms from html and network", func(t *testing.T) {
		t.Parallel()

		html := `<script src="https://cdn.amplitude.com/libs/analytics-browser-2.0.0-min.js.gz"></script>`
		network := []string{"https://api-js.mixpanel.com/track/?data=abc"}
		info, _ := ExtractPixels(context.Background(), html, nil, network)

		if !info.Amplitude.Found || info.Amplitude.Sources[0] != "html" {
			t.Errorf("amplitude = %+v", info.Amplitude)
		}
		if !info.Mixpanel.Found || info.Mixpanel.Sources[0] != "network" {
			t.Errorf("mixpanel = %+v", info.Mixpanel)
		}
		if info.TripleWhale.Found {
			t.Error("triple whale should not be found")
		}
		if got := info.PlatformsFound(); got != 2 {
			t.Errorf("PlatformsFound = %d, want 2", got)
		}
	})

	t.Run("runtime merge without duplicates", func(t *testing.T) {
		t.Parallel()

		eval := func(_ context.Context, js string) (gson.JSON, error) {
			if !strings.Contains(js, "fbq.getState") {
				t.Error("script does not inspect fbq state")
			}
			return gson.NewFrom(`{
				"meta": ["1234567890123", "2222222222222"],
				"tiktok": [],
				"linkedin": ["445566"],
				"googleAds": ["AW-555666"],
				"ga4": ["G-RUNTIME1"],
				"platforms": {"amplitude": false, "mixpanel": false, "tripleWhale": true},
				"dataLayer": {
					"length": 4,
					"events": ["gtm.js", "gtm.dom"],
					"consentCommands": 2,
					"consentDefaults": {"ad_storage": "denied", "analytics_storage": "granted"}
				}
			}`), nil
		}
		html := `<script>fbq('init', '1234567890123');</script>`
		info, snap := ExtractPixels(context.Background(), html, eval, nil)

		if !reflect.DeepEqual(info.Meta.IDs, []string{"1234567890123", "2222222222222"}) {
			t.Errorf("meta ids = %v", info.Meta.IDs)
		}
		if info.Meta.Primary != "1234567890123" {
			t.Errorf("primary changed to %q", info.Meta.Primary)
		}
		if !info.LinkedIn.Found || !info.GoogleAds.Found || !info.GA4.Found {
			t.Error("runtime ids were not merged")
		}
		if !info.TripleWhale.Found || info.TripleWhale.Sources[0] != "runtime" {
			t.Errorf("tripleWhale = %+v", info.TripleWhale)
		}
		if snap == nil {
			t.Fatal("expected dataLayer snapshot")
		}
		if snap.Length != 4 || snap.ConsentCommands != 2 || len(snap.Events) != 2 {
			t.Errorf("snapshot = %+v", snap)
		}
		if snap.ConsentDefaults["ad_storage"] != "denied" {
			t.Errorf("consentDefaults = %v", snap.ConsentDefaults)
		}
	})

	t.Run("evaluator failure keeps static results", func(t *testing.T) {
		t.Parallel()

		eval := func(context.Context, string) (gson.JSON, error) {
			return gson.JSON{}, errors.New("execution context destroyed")
		}
		info, snap := ExtractPixels(context.Background(), `<script>gtag('config','AW-123ABC');</script>`, eval, nil)
		if !info.GoogleAds.Found {
			t.Error("static result lost after evaluator failure")
		}
		if snap != nil {
			t.Error("expected nil snapshot")
		}
	})
}

func TestPageStats(t *testing.T) {
	t.Parallel()

	html := `<html><head><title> Shop </title><script></script><script src="a.js"></script></head>
<body><a href="/x">x</a><a>no href</a><img src="a.png"><img src="b.png"><img src="c.png"></body></html>`
	info := PageStats(html)
	if info.Title != "Shop" || info.ScriptCount != 2 || info.LinkCount != 1 || info.ImageCount != 3 {
		t.Errorf("PageStats = %+v", info)
	}
}
