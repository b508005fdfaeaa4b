package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/tagscope/api/handler"
	"github.com/use-agent/tagscope/api/middleware"
	"github.com/use-agent/tagscope/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// hist may be nil when scan history is disabled.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is outside auth so monitoring checks always work.
func NewRouter(ctx context.Context, sc handler.Scanner, hist handler.History, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health, no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/scan", handler.Scan(sc, hist, cfg.Scan))
	protected.GET("/scans", handler.ListScans(hist))
	protected.GET("/scans/:id", handler.GetScan(hist))

	return r
}
