package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/use-agent/tagscope/models"
)

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(models.ScanResponse{Error: &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: "invalid API key"}})
			return
		}
		var req scanRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.URL, "down") {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(models.ScanResponse{
				Result: &models.ScanResult{URL: req.URL, Error: "NAVIGATION_FAILED: target returned HTTP 503"},
				Error:  &models.ErrorDetail{Code: models.ErrCodeNavigation, Message: "target returned HTTP 503"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(models.ScanResponse{
			Success: true,
			Result: &models.ScanResult{
				URL:     req.URL,
				Success: true,
				Gtm:     &models.GtmInfo{Found: true, Containers: []string{"GTM-ABC123"}, Count: 1, Primary: "GTM-ABC123"},
				Scores:  &models.Scores{Performance: 50, Privacy: 85, Tracking: 40, Compliance: 60, Overall: 59},
			},
		})
	})
	mux.HandleFunc("GET /api/v1/scans", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(models.HistoryResponse{Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "bad limit"}})
			return
		}
		_ = json.NewEncoder(w).Encode(models.HistoryResponse{
			Success: true,
			Scans:   []models.HistoryEntry{{ID: 3, URL: "https://shop.example.com/", Success: true, Scores: &models.Scores{Overall: 59}}},
		})
	})
	mux.HandleFunc("GET /api/v1/scans/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "3" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(models.ScanResponse{Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "scan not found"}})
			return
		}
		_ = json.NewEncoder(w).Encode(models.ScanResponse{Success: true, Result: &models.ScanResult{URL: "https://shop.example.com/", Success: true}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return newAPIClient(srv.URL+"/", "secret")
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()

	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestScanSite(t *testing.T) {
	t.Parallel()

	c := newTestAPI(t)

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		contains  string
	}{
		{"success", map[string]any{"url": "https://shop.example.com/"}, false, "GTM-ABC123"},
		{"navigation failure", map[string]any{"url": "https://down.example.com/"}, true, "NAVIGATION_FAILED"},
		{"missing url", map[string]any{}, true, "url is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			text, isErr := callTool(t, handleScanSite(c), tt.args)
			if isErr != tt.wantError {
				t.Errorf("IsError = %v, want %v: %s", isErr, tt.wantError, text)
			}
			if !strings.Contains(text, tt.contains) {
				t.Errorf("result missing %q:\n%s", tt.contains, text)
			}
		})
	}
}

func TestScanSiteUnauthorized(t *testing.T) {
	t.Parallel()

	c := newTestAPI(t)
	c.apiKey = "wrong"
	text, isErr := callTool(t, handleScanSite(c), map[string]any{"url": "https://shop.example.com/"})
	if !isErr || !strings.Contains(text, models.ErrCodeUnauthorized) {
		t.Errorf("got %q (error=%v)", text, isErr)
	}
}

func TestListScans(t *testing.T) {
	t.Parallel()

	c := newTestAPI(t)
	text, isErr := callTool(t, handleListScans(c), map[string]any{"limit": float64(5)})
	if isErr || !strings.Contains(text, "https://shop.example.com/") {
		t.Errorf("got %q (error=%v)", text, isErr)
	}

	if _, isErr := callTool(t, handleListScans(c), map[string]any{"limit": float64(7)}); !isErr {
		t.Error("expected error result for rejected query")
	}
}

func TestGetScan(t *testing.T) {
	t.Parallel()

	c := newTestAPI(t)
	if text, isErr := callTool(t, handleGetScan(c), map[string]any{"id": float64(3)}); isErr || !strings.Contains(text, "Tagscope Report") {
		t.Errorf("got %q (error=%v)", text, isErr)
	}
	if text, isErr := callTool(t, handleGetScan(c), map[string]any{"id": float64(4)}); !isErr || !strings.Contains(text, "scan not found") {
		t.Errorf("got %q (error=%v)", text, isErr)
	}
	if _, isErr := callTool(t, handleGetScan(c), map[string]any{}); !isErr {
		t.Error("expected error result without id")
	}
}
