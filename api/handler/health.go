package handler

import (
	"net/http"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/crawler"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint.
const Version = "0.3.0"

// Health returns a handler for GET /api/v1/health.
//
// Status is "degraded" while the open session shows a login prompt: crawls
// started then would read the login page.
func Health(svc *crawler.Service, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := svc.State(c.Request.Context())

		status := "healthy"
		if state.Open && state.LoginRequired {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Session: state,
			Version: Version,
		})
	}
}

// Sites returns a handler for GET /api/v1/sites.
func Sites(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sites": svc.Sites()})
	}
}
