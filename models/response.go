package models

// ScanResponse is the response for POST /api/v1/scan.
type ScanResponse struct {
	// Success mirrors Result.Success; false for invalid input as well.
	Success bool `json:"success"`

	// Result is present whenever a scan was started, including fatal
	// failures, so the caller can see which stages completed.
	Result *ScanResult `json:"result,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in the request.
type TimingInfo struct {
	TotalMs int64 `json:"total_ms"`
	ScanMs  int64 `json:"scan_ms"`
}

// HistoryEntry is one persisted scan summary.
type HistoryEntry struct {
	ID        int64   `json:"id"`
	URL       string  `json:"url"`
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
	Scores    *Scores `json:"scores,omitempty"`
	ScannedAt int64   `json:"scanned_at"` // unix timestamp
}

// HistoryResponse is the response for GET /api/v1/scans.
type HistoryResponse struct {
	Success bool           `json:"success"`
	Scans   []HistoryEntry `json:"scans"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	ScanStats ScanStats `json:"scan_stats"`
	Version   string    `json:"version"`
}

// ScanStats reports the scanner's concurrency state.
type ScanStats struct {
	MaxScans    int `json:"max_scans"`
	ActiveScans int `json:"active_scans"`
}
