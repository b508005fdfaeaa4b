package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/tagscope/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "data", "scans.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "scans.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestSaveAndRecent(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	scans := []*models.ScanResult{
		{URL: "https://a.example.com/", Success: true, StartedAt: base,
			Scores: &models.Scores{Performance: 50, Privacy: 85, Tracking: 40, Compliance: 60, Overall: 59}},
		{URL: "https://b.example.com/", Success: false, Error: "NAVIGATION_FAILED: target returned HTTP 503",
			StartedAt: base.Add(time.Minute)},
		{URL: "https://a.example.com/", Success: true, StartedAt: base.Add(2 * time.Minute),
			Scores: &models.Scores{Performance: 70, Privacy: 85, Tracking: 40, Compliance: 60, Overall: 64}},
	}
	for _, r := range scans {
		if _, err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := s.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Scores == nil || all[0].Scores.Overall != 64 {
		t.Errorf("newest = %+v, want overall 64", all[0])
	}
	if all[1].Success || all[1].Scores != nil || all[1].Error == "" {
		t.Errorf("failed scan = %+v", all[1])
	}
	if all[2].ScannedAt != base.Unix() {
		t.Errorf("ScannedAt = %d, want %d", all[2].ScannedAt, base.Unix())
	}

	onlyA, err := s.Recent(ctx, "https://a.example.com/", 1)
	if err != nil {
		t.Fatalf("Recent(url): %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].Scores.Overall != 64 {
		t.Errorf("Recent(url, 1) = %+v", onlyA)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	want := &models.ScanResult{
		URL:     "https://shop.example.com/",
		Success: true,
		Gtm:     &models.GtmInfo{Found: true, Containers: []string{"GTM-ABC123", "GTM-XYZ789"}, Count: 2, Primary: "GTM-ABC123"},
	}
	id, err := s.Save(ctx, want)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.URL != want.URL || got.Gtm == nil || got.Gtm.Count != 2 || got.Gtm.Containers[1] != "GTM-XYZ789" {
		t.Errorf("Get = %+v", got)
	}

	if _, err := s.Get(ctx, id+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}
