package api

import (
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/api/handler"
	"github.com/Carbocoon/SteelPriceCrawler/api/middleware"
	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/Carbocoon/SteelPriceCrawler/crawler"
	"github.com/Carbocoon/SteelPriceCrawler/metrics"
	"github.com/gin-gonic/gin"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics stay outside auth so probes and scrapers always work.
func NewRouter(svc *crawler.Service, m *metrics.Metrics, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	v1 := r.Group("/api/v1")

	// Health: no auth.
	v1.GET("/health", handler.Health(svc, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/sites", handler.Sites(svc))

	// Session
	protected.POST("/session", handler.OpenSession(svc))
	protected.GET("/session", handler.GetSession(svc))
	protected.DELETE("/session", handler.CloseSession(svc))

	// Crawl
	protected.POST("/crawl", handler.PostCrawl(svc))
	protected.GET("/crawl/:id", handler.GetCrawl(svc))
	protected.POST("/crawl/:id/cancel", handler.CancelCrawl(svc))
	protected.GET("/crawl/:id/export", handler.ExportCrawl(svc))

	// History
	protected.GET("/runs", handler.ListRuns(svc))

	return r
}
