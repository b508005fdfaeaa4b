// Command tagscope-mcp exposes the tagscope HTTP API as MCP tools over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/tagscope/api/handler"
)

func main() {
	apiURL := os.Getenv("TAGSCOPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("TAGSCOPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "TAGSCOPE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"tagscope",
		handler.Version,
		server.WithToolCapabilities(false),
	)

	c := newAPIClient(apiURL, apiKey)

	scanSiteTool := mcp.NewTool("scan_site",
		mcp.WithDescription("Load a web page in a headless browser, accept its cookie banner, and report the tag managers, ad pixels and analytics platforms it runs with performance, privacy, tracking and compliance scores."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) URL of the page to scan"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Scan timeout in seconds (default: server setting, min: 10, max: 300)"),
		),
	)
	s.AddTool(scanSiteTool, handleScanSite(c))

	listScansTool := mcp.NewTool("list_scans",
		mcp.WithDescription("List recent scans recorded by the tagscope server, newest first."),
		mcp.WithString("url",
			mcp.Description("Only list scans of this exact URL"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of scans to return (default: 20, max: 200)"),
		),
	)
	s.AddTool(listScansTool, handleListScans(c))

	getScanTool := mcp.NewTool("get_scan",
		mcp.WithDescription("Fetch the full stored result of one scan by its ID."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Scan ID as returned by list_scans"),
		),
	)
	s.AddTool(getScanTool, handleGetScan(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
