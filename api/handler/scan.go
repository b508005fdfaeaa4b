package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/tagscope/config"
	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/scraper"
	"github.com/use-agent/tagscope/webhook"
)

// Scanner runs scans.
type Scanner interface {
	RunScan(ctx context.Context, url string, progress scraper.ProgressFunc) (*models.ScanResult, error)
	Stats() models.ScanStats
}

// History persists and lists final scan results.
type History interface {
	Save(ctx context.Context, result *models.ScanResult) (int64, error)
	Recent(ctx context.Context, url string, limit int) ([]models.HistoryEntry, error)
	Get(ctx context.Context, id int64) (*models.ScanResult, error)
}

// Scan returns a handler for POST /api/v1/scan.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Scanner.RunScan under the request timeout (records scan_ms).
//  3. Persist the final result when a history store is configured.
//  4. Fire the scan.completed webhook when requested.
//  5. Respond 200, or the mapped error status with the partial result.
func Scan(sc Scanner, hist History, cfg config.ScanConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults(int(cfg.DefaultTimeout.Seconds()))

		timeout := time.Duration(req.Timeout) * time.Second
		if cfg.MaxTimeout > 0 && timeout > cfg.MaxTimeout {
			timeout = cfg.MaxTimeout
		}

		// ── 2. Scan ─────────────────────────────────────────────────
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		scanStart := time.Now()
		result, err := sc.RunScan(ctx, req.URL, func(step int, message string) {
			slog.Debug("scan progress", "url", req.URL, "step", step, "message", message)
		})
		timing := models.TimingInfo{ScanMs: time.Since(scanStart).Milliseconds()}

		if result == nil {
			timing.TotalMs = time.Since(totalStart).Milliseconds()
			respondError(c, err, nil, timing)
			return
		}

		// ── 3. Persist ──────────────────────────────────────────────
		var scanID int64
		if hist != nil && req.Save != nil && *req.Save {
			id, saveErr := hist.Save(context.WithoutCancel(c.Request.Context()), result)
			if saveErr != nil {
				slog.Warn("failed to persist scan", "url", req.URL, "error", saveErr)
			}
			scanID = id
		}

		// ── 4. Webhook ──────────────────────────────────────────────
		if req.WebhookURL != "" {
			webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, webhook.NewScanCompleted(scanID, result))
		}

		// ── 5. Respond ──────────────────────────────────────────────
		timing.TotalMs = time.Since(totalStart).Milliseconds()
		if err != nil {
			respondError(c, err, result, timing)
			return
		}
		c.JSON(http.StatusOK, models.ScanResponse{
			Success: true,
			Result:  result,
			Timing:  timing,
		})
	}
}

// respondError maps a ScanError to the correct HTTP status code and writes
// a structured JSON error response. result may carry a partial scan.
func respondError(c *gin.Context, err error, result *models.ScanResult, timing models.TimingInfo) {
	var scanErr *models.ScanError
	if !errors.As(err, &scanErr) {
		msg := "unknown error"
		if err != nil {
			msg = err.Error()
		}
		scanErr = models.NewScanError(models.ErrCodeInternal, msg, err)
	}

	c.JSON(mapErrorToStatus(scanErr), models.ScanResponse{
		Success: false,
		Result:  result,
		Error:   scanErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScanError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSession:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
