// Package webhook delivers signed scan notifications.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/tagscope/models"
)

// EventScanCompleted is sent when a scan finishes, successfully or not.
const EventScanCompleted = "scan.completed"

// SignatureHeader carries "sha256=<hex HMAC of the body>".
const SignatureHeader = "X-Tagscope-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string             `json:"type"`
	ScanID    int64              `json:"scan_id,omitempty"`
	URL       string             `json:"url"`
	Timestamp int64              `json:"timestamp"`
	Success   bool               `json:"success"`
	Scores    *models.Scores     `json:"scores,omitempty"`
	Data      *models.ScanResult `json:"data"`
}

// NewScanCompleted builds the event for a finished scan. scanID is 0 when
// the result was not persisted.
func NewScanCompleted(scanID int64, result *models.ScanResult) *Event {
	return &Event{
		Type:      EventScanCompleted,
		ScanID:    scanID,
		URL:       result.URL,
		Timestamp: time.Now().Unix(),
		Success:   result.Success,
		Scores:    result.Scores,
		Data:      result,
	}
}

// retryDelays are the waits before each attempt.
var retryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

var client = &http.Client{Timeout: 10 * time.Second}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Tagscope-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends a webhook event asynchronously with up to 3 retries.
// Retry intervals: 1s, 5s, 30s. The returned channel is closed when
// delivery finished or gave up.
func DeliverAsync(url, secret string, event *Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for attempt, delay := range retryDelays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"scan_id", event.ScanID,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"scan_id", event.ScanID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", url,
			"event", event.Type,
			"scan_id", event.ScanID,
		)
	}()
	return done
}
