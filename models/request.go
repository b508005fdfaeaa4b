package models

// ScanRequest is the payload for POST /api/v1/scan.
type ScanRequest struct {
	// URL is the target page to scan. Required.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the maximum duration in seconds for the whole scan.
	// Default: server ScanTimeout. Max: 300.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=10,max=300"`

	// WebhookURL receives a signed scan.completed event when set.
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// Save persists the result when the store is enabled. Default: true.
	Save *bool `json:"save,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScanRequest) Defaults(defaultTimeout int) {
	if r.Timeout == 0 {
		r.Timeout = defaultTimeout
	}
	if r.Save == nil {
		t := true
		r.Save = &t
	}
}

// HistoryQuery is the query string for GET /api/v1/scans.
type HistoryQuery struct {
	URL   string `form:"url"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=200"`
}
