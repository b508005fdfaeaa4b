package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/tagscope/models"
)

func testResult() *models.ScanResult {
	return &models.ScanResult{
		URL:     "https://shop.example.com/",
		Success: true,
		Scores:  &models.Scores{Performance: 50, Privacy: 85, Tracking: 40, Compliance: 60, Overall: 59},
	}
}

func TestDeliverSignsBody(t *testing.T) {
	t.Parallel()

	var gotSig string
	var gotEvent Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		if want := Sign("s3cret", body); gotSig != want {
			t.Errorf("signature = %q, want %q", gotSig, want)
		}
		if err := json.Unmarshal(body, &gotEvent); err != nil {
			t.Errorf("body is not an event: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "s3cret", NewScanCompleted(7, testResult())); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotEvent.Type != EventScanCompleted || gotEvent.ScanID != 7 || gotEvent.Scores == nil || gotEvent.Scores.Overall != 59 {
		t.Errorf("event = %+v", gotEvent)
	}
}

func TestDeliverWithoutSecret(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sig := r.Header.Get(SignatureHeader); sig != "" {
			t.Errorf("unexpected signature %q", sig)
		}
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", NewScanCompleted(0, testResult())); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliverErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", NewScanCompleted(0, testResult())); err == nil {
		t.Error("expected error for HTTP 500")
	}
}

func TestDeliverAsyncRetries(t *testing.T) {
	// Mutates retryDelays; not parallel.
	saved := retryDelays
	retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = saved }()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	select {
	case <-DeliverAsync(srv.URL, "", NewScanCompleted(0, testResult())):
	case <-time.After(5 * time.Second):
		t.Fatal("delivery did not finish")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}
