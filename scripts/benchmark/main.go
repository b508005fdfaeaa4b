// Command benchmark runs repeated scans against a running tagscope API and
// reports latency and detection stability per site.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/tagscope/models"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "tagscope API base URL")
	apiKey   = flag.String("api-key", "", "API key for authenticated requests")
	runs     = flag.Int("runs", 3, "Number of runs per URL for averaging")
	urlsFile = flag.String("urls", "", "File with one URL per line (default: built-in site list)")
	timeout  = flag.Int("timeout", 120, "Per-scan timeout in seconds sent to the API")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

type target struct {
	Label string
	URL   string
}

// defaultTargets covers common storefront and publisher stacks.
var defaultTargets = []target{
	{"Static", "https://example.com"},
	{"Shopify", "https://www.allbirds.com"},
	{"Publisher", "https://www.theguardian.com"},
	{"OneTrust", "https://www.bbc.com"},
	{"SaaS", "https://www.hubspot.com"},
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	HTTPStatus int    `json:"http_status"`
	TotalMs    int64  `json:"total_ms"`
	ScanMs     int64  `json:"scan_ms"`
	Overall    int    `json:"overall"`
	Accepted   bool   `json:"consent_accepted"`
	Containers int    `json:"containers"`
	Pixels     int    `json:"pixels"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs    float64 `json:"total_ms"`
	ScanMs     float64 `json:"scan_ms"`
	Overall    float64 `json:"overall"`
	Containers float64 `json:"containers"`
	Pixels     float64 `json:"pixels"`
}

type urlResult struct {
	URL   string      `json:"url"`
	Label string      `json:"label"`
	Runs  []runResult `json:"runs"`

	// Stable is true when every successful run found the same containers
	// and pixel count.
	Stable   bool         `json:"stable"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	targets, err := loadTargets(*urlsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== tagscope Benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Targets:   %d\n", len(targets))
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure tagscope is running (tagscope serve)\n")
		os.Exit(1)
	}

	client := &http.Client{Timeout: time.Duration(*timeout+30) * time.Second}
	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, t := range targets {
		fmt.Printf("Scanning [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		var fingerprints []string
		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr, fp := scanOnce(client, t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  overall %d  %d containers\n", rr.TotalMs, rr.Overall, rr.Containers)
				fingerprints = append(fingerprints, fp)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Stable = allEqual(fingerprints)
		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

// loadTargets reads one URL per line; blank lines and # comments are skipped.
func loadTargets(path string) ([]target, error) {
	if path == "" {
		return defaultTargets, nil
	}
	f, err := os.Open(path) //nolint:gosec // operator-provided list
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []target
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, target{Label: fmt.Sprintf("#%d", len(out)+1), URL: line})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s contains no URLs", path)
	}
	return out, nil
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// scanOnce runs one scan and returns its metrics plus a fingerprint of what
// was detected.
func scanOnce(client *http.Client, url string, run int) (runResult, string) {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(models.ScanRequest{URL: url, Timeout: *timeout, Save: new(bool)})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr, ""
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/scan", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr, ""
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr, ""
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	var sr models.ScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr, ""
	}

	rr.Success = sr.Success
	rr.TotalMs = sr.Timing.TotalMs
	rr.ScanMs = sr.Timing.ScanMs
	if sr.Error != nil {
		rr.Error = sr.Error.Code + ": " + sr.Error.Message
	}
	if sr.Result == nil {
		return rr, ""
	}

	res := sr.Result
	var containers []string
	if res.Scores != nil {
		rr.Overall = res.Scores.Overall
	}
	if res.Cookies != nil {
		rr.Accepted = res.Cookies.Accepted
	}
	if res.Gtm != nil {
		rr.Containers = res.Gtm.Count
		containers = res.Gtm.Containers
	}
	if p := res.Pixels; p != nil {
		for _, ch := range []models.Channel{p.Meta, p.TikTok, p.LinkedIn, p.GoogleAds, p.GA4} {
			if ch.Found {
				rr.Pixels++
			}
		}
	}
	return rr, fmt.Sprintf("%s|%d", strings.Join(containers, ","), rr.Pixels)
}

func allEqual(ss []string) bool {
	for _, s := range ss {
		if s != ss[0] {
			return false
		}
	}
	return true
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.ScanMs += float64(r.ScanMs)
		avg.Overall += float64(r.Overall)
		avg.Containers += float64(r.Containers)
		avg.Pixels += float64(r.Pixels)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.ScanMs /= n
	avg.Overall /= n
	avg.Containers /= n
	avg.Pixels /= n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tOverall\tContainers\tPixels\tStable\n")
	fmt.Fprintf(w, "───\t───────────\t───────\t──────────\t──────\t──────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.0f\t%.1f\t%.1f\t%v\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.TotalMs),
			r.Averages.Overall,
			r.Averages.Containers,
			r.Averages.Pixels,
			r.Stable,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, maxLen int) string {
	if len(u) <= maxLen {
		return u
	}
	return u[:maxLen-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
