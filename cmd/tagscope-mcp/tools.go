package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/report"
)

// apiClient calls the tagscope HTTP API.
type apiClient struct {
	http   *http.Client
	apiURL string
	apiKey string
}

func newAPIClient(apiURL, apiKey string) *apiClient {
	return &apiClient{
		// Scans may take up to the 300s server maximum.
		http:   &http.Client{Timeout: 330 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
	}
}

// do sends a request and decodes the JSON response into out. Non-2xx
// responses are decoded as well; callers inspect the envelope.
func (c *apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

func errorText(fallback string, detail *models.ErrorDetail) string {
	if detail == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", detail.Code, detail.Message)
}

// scanRequest is the POST /api/v1/scan body.
type scanRequest struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout,omitempty"`
}

func handleScanSite(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.ScanResponse
		body := scanRequest{URL: target, Timeout: request.GetInt("timeout", 0)}
		if err := c.do(ctx, http.MethodPost, "/api/v1/scan", body, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if resp.Result == nil {
			return mcp.NewToolResultError(errorText("scan failed", resp.Error)), nil
		}

		text, err := renderResult(resp.Result)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(errorText("scan failed", resp.Error) + "\n\n" + text)},
				IsError: true,
			}, nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func handleListScans(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := url.Values{}
		if u := request.GetString("url", ""); u != "" {
			q.Set("url", u)
		}
		if limit := request.GetInt("limit", 0); limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}
		path := "/api/v1/scans"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp models.HistoryResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText("listing scans failed", resp.Error)), nil
		}

		var buf bytes.Buffer
		if err := report.WriteHistory("markdown", &buf, resp.Scans); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
}

func handleGetScan(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := request.GetInt("id", 0)
		if id <= 0 {
			return mcp.NewToolResultError("id must be a positive integer"), nil
		}

		var resp models.ScanResponse
		if err := c.do(ctx, http.MethodGet, "/api/v1/scans/"+strconv.Itoa(id), nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if resp.Result == nil {
			return mcp.NewToolResultError(errorText("scan not found", resp.Error)), nil
		}

		text, err := renderResult(resp.Result)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// renderResult formats a scan as the Markdown report.
func renderResult(result *models.ScanResult) (string, error) {
	var buf bytes.Buffer
	if _, err := report.NewMarkdownWriter(&buf).Write(result); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
