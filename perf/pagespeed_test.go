package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const lighthouseFixture = `{
  "lighthouseResult": {
    "categories": {
      "performance": {"score": 0.87},
      "accessibility": {"score": 0.9},
      "best-practices": {"score": 1},
      "seo": {"score": 0.75}
    },
    "audits": {
      "first-contentful-paint": {"numericValue": 1234.5},
      "largest-contentful-paint": {"numericValue": 2100},
      "max-potential-fid": {"numericValue": 80},
      "cumulative-layout-shift": {"numericValue": 0.05},
      "total-blocking-time": {"numericValue": 150},
      "speed-index": {"numericValue": 2900},
      "interactive": {"numericValue": 3100},
      "server-response-time": {"numericValue": 320},
      "metrics": {"details": {"items": [{"observedDomContentLoaded": 980, "observedLoad": 2456}]}}
    }
  }
}`

func TestFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("url") != "https://example.com" || q.Get("key") != "k" {
			t.Errorf("unexpected query %v", q)
		}
		if len(q["category"]) != 4 {
			t.Errorf("categories = %v", q["category"])
		}
		w.Write([]byte(lighthouseFixture))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "", 5*time.Second)
	info := c.Fetch(context.Background(), "https://example.com")

	if info.Source != SourcePageSpeed {
		t.Fatalf("source = %q, want pagespeed", info.Source)
	}
	if info.PerformanceScore != 87 || info.BestPracticesScore != 100 || info.SEOScore != 75 {
		t.Errorf("scores = %d/%d/%d/%d", info.PerformanceScore, info.AccessibilityScore, info.BestPracticesScore, info.SEOScore)
	}
	if info.FirstContentfulPaint != 1234.5 || info.TimeToFirstByte != 320 {
		t.Errorf("audits = %+v", info)
	}
	if info.LoadTime != 2.46 || info.DOMContentLoaded != 980 {
		t.Errorf("loadTime=%v domContentLoaded=%v", info.LoadTime, info.DOMContentLoaded)
	}
}

func TestFetchFallsBackToDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		apiKey string
	}{
		{name: "no api key", status: http.StatusOK, body: lighthouseFixture},
		{name: "server error", status: http.StatusInternalServerError, body: "{}", apiKey: "k"},
		{name: "invalid json", status: http.StatusOK, body: "{oops", apiKey: "k"},
		{name: "missing lighthouse result", status: http.StatusOK, body: `{"error": {}}`, apiKey: "k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			info := NewClient(srv.URL, tt.apiKey, "", 5*time.Second).Fetch(context.Background(), "https://example.com")
			if *info != *DefaultSample() {
				t.Errorf("expected default sample, got %+v", info)
			}
		})
	}
}
