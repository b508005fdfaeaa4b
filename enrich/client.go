// Package enrich calls the external tag-manager analysis service for each
// discovered container and normalizes its responses into a TagstackInfo.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/tagscope/models"
)

// maxResponseBytes caps a single analysis response.
const maxResponseBytes = 10 << 20

// containerScriptURL is the loader URL the service analyzes for a container.
const containerScriptURL = "https://www.googletagmanager.com/gtm.js?id="

// Client is a lightweight client for the analysis service.
// It uses net/http directly; the service has no SDK.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewClient creates a Client. An empty endpoint disables enrichment.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimSpace(endpoint),
		apiKey:     apiKey,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// analyzeRequest is the request body sent per container.
type analyzeRequest struct {
	URL string `json:"url"`
}

// Enrich analyzes every container in parallel and merges the results in
// input order. It returns (nil, nil) when the service returned nothing
// usable, and an error only when every request failed.
func (c *Client) Enrich(ctx context.Context, ids []string) (*models.TagstackInfo, error) {
	if !c.Enabled() || len(ids) == 0 {
		return nil, nil
	}

	payloads := make([]map[string]json.RawMessage, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(len(ids))
	for i, id := range ids {
		g.Go(func() error {
			p, err := c.analyze(ctx, id)
			if err != nil {
				slog.Warn("enrichment request failed", "container", id, "error", err)
				errs[i] = err
				return nil
			}
			payloads[i] = p
			return nil
		})
	}
	_ = g.Wait()

	acc := newAccumulator()
	failed := 0
	for i := range ids {
		if errs[i] != nil {
			failed++
			continue
		}
		acc.addPayload(payloads[i])
	}
	if failed == len(ids) {
		return nil, models.NewScanError(models.ErrCodeEnrichment,
			fmt.Sprintf("all %d enrichment requests failed", failed), errors.Join(errs...))
	}
	return acc.result(), nil
}

// analyze performs one request and resolves its envelope.
func (c *Client) analyze(ctx context.Context, id string) (payload map[string]json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("enrich: panic decoding %s: %v", id, r)
		}
	}()

	body, err := json.Marshal(analyzeRequest{URL: containerScriptURL + id})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusRequestHeaderFieldsTooLarge {
		return nil, errors.New("analysis service rejected request headers (HTTP 431)")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("analysis service returned HTTP %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	containers, err := decodeEnvelope(respBody)
	if errors.Is(err, errUnsuccessful) {
		return nil, err
	}
	if err != nil {
		// A malformed payload is not a transport failure; it just yields nothing.
		slog.Debug("enrichment payload unusable", "container", id, "error", err)
		return nil, nil
	}
	return containers, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
