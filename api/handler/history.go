package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/tagscope/models"
	"github.com/use-agent/tagscope/store"
)

var errHistoryDisabled = &models.ErrorDetail{
	Code:    models.ErrCodeInternal,
	Message: "scan history is disabled",
}

// ListScans returns a handler for GET /api/v1/scans.
func ListScans(hist History) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hist == nil {
			c.JSON(http.StatusServiceUnavailable, models.HistoryResponse{Success: false, Error: errHistoryDisabled})
			return
		}

		var q models.HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, models.HistoryResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		entries, err := hist.Recent(c.Request.Context(), q.URL, q.Limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.HistoryResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusOK, models.HistoryResponse{Success: true, Scans: entries})
	}
}

// GetScan returns a handler for GET /api/v1/scans/:id.
func GetScan(hist History) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hist == nil {
			c.JSON(http.StatusServiceUnavailable, models.ScanResponse{Success: false, Error: errHistoryDisabled})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "invalid scan id"},
			})
			return
		}

		result, err := hist.Get(c.Request.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, models.ScanResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "scan not found"},
			})
		case err != nil:
			c.JSON(http.StatusInternalServerError, models.ScanResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
		default:
			c.JSON(http.StatusOK, models.ScanResponse{Success: result.Success, Result: result})
		}
	}
}
