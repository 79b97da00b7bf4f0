package handler

import (
	"net/http"

	"github.com/Carbocoon/SteelPriceCrawler/crawler"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/gin-gonic/gin"
)

// OpenSession returns a handler for POST /api/v1/session.
//
// The browser window stays open on the site's entry page; the operator
// logs in there before starting a crawl.
func OpenSession(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		state, err := svc.OpenSession(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SessionResponse{Success: true, Session: state})
	}
}

// GetSession returns a handler for GET /api/v1/session.
func GetSession(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.SessionResponse{
			Success: true,
			Session: svc.State(c.Request.Context()),
		})
	}
}

// CloseSession returns a handler for DELETE /api/v1/session.
func CloseSession(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.CloseSession(); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SessionResponse{Success: true})
	}
}
