package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/tagscope/models"
)

func createTestResult() *models.ScanResult {
	return &models.ScanResult{
		URL:       "https://shop.example.com/",
		Success:   true,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  12 * time.Second,
		Page:      models.PageInfo{Title: "Shop", ScriptCount: 12},
		Cookies: &models.CookieInfo{
			Accepted: true, Provider: "OneTrust", Confidence: models.ConfidenceHigh,
			Method: models.MethodCMPSpecific, CookieCount: 5, CookieKeys: []string{"_ga"}, CookieDomains: 2,
		},
		Gtm: &models.GtmInfo{Found: true, Containers: []string{"GTM-ABC123", "GTM-XYZ789"}, Count: 2, Primary: "GTM-ABC123"},
		Pixels: &models.PixelInfo{
			GoogleAds: models.Channel{Found: true, IDs: []string{"AW-123ABC"}, Primary: "AW-123ABC", Methods: []string{"gtag-config"}},
		},
		Tagstack: &models.TagstackInfo{
			Containers: map[string]models.ContainerStats{
				"GTM-ABC123": {Tags: 4, ActiveTags: 3, PausedTags: 1, Variables: 3, Triggers: 2},
			},
			ConsentModeV2: true,
		},
		Scores: &models.Scores{Performance: 50, Privacy: 85, Tracking: 40, Compliance: 60, Overall: 59},
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(createTestResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"# Tagscope Report",
		"https://shop.example.com/",
		"## Scores",
		"OneTrust",
		"`GTM-ABC123` (primary)",
		"`GTM-XYZ789`",
		"AW-123ABC",
		"## Container Analysis",
		"mermaid",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMarkdownWriterFailedScan(t *testing.T) {
	t.Parallel()

	r := &models.ScanResult{URL: "https://down.example.com/", Success: false, Error: "NAVIGATION_FAILED: target returned HTTP 503"}
	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"HTTP 503", "No scores were computed.", "No tag manager containers detected."} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf).Write(createTestResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["url"] != "https://shop.example.com/" {
		t.Errorf("url = %v", decoded["url"])
	}
	if !strings.Contains(buf.String(), "\n  \"") {
		t.Error("expected indented output")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"", false},
		{"markdown", false},
		{"md", false},
		{"pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			w, err := New(tt.format, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if !tt.wantErr && w == nil {
				t.Error("writer is nil")
			}
		})
	}
}

func TestWriteHistory(t *testing.T) {
	t.Parallel()

	entries := []models.HistoryEntry{
		{ID: 7, URL: "https://a.example.com/", Success: true, Scores: &models.Scores{Overall: 59}, ScannedAt: 1772366400},
		{ID: 6, URL: "https://b.example.com/", Error: "NAVIGATION_FAILED: target returned HTTP 503", ScannedAt: 1772366300},
	}

	var md bytes.Buffer
	if err := WriteHistory("markdown", &md, entries); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	for _, want := range []string{"Scan History", "https://a.example.com/", "59", "NAVIGATION_FAILED"} {
		if !strings.Contains(md.String(), want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	var js bytes.Buffer
	if err := WriteHistory("json", &js, nil); err != nil {
		t.Fatalf("json: %v", err)
	}
	if strings.TrimSpace(js.String()) != "[]" {
		t.Errorf("empty history = %q, want []", js.String())
	}

	if err := WriteHistory("xml", &js, entries); err == nil {
		t.Error("expected error for unknown format")
	}
}
