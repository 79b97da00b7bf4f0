package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/crawler"
	"github.com/Carbocoon/SteelPriceCrawler/export"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/gin-gonic/gin"
)

// PostCrawl returns a handler for POST /api/v1/crawl.
//
// The walk runs in the background; poll GET /api/v1/crawl/:id.
func PostCrawl(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		job, err := svc.StartCrawl(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, models.CrawlResponse{ID: job.ID, Status: job.Status()})
	}
}

// GetCrawl returns a handler for GET /api/v1/crawl/:id.
//
// Records are included unless ?records=false.
func GetCrawl(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.Job(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		withRecords := c.DefaultQuery("records", "true") != "false"
		c.JSON(http.StatusOK, job.Response(withRecords))
	}
}

// CancelCrawl returns a handler for POST /api/v1/crawl/:id/cancel.
func CancelCrawl(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.Cancel(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job.Response(false))
	}
}

// ExportCrawl returns a handler for GET /api/v1/crawl/:id/export.
//
// format is csv (default), jsonl or xlsx. Jobs that expired from memory are
// served from the history store.
func ExportCrawl(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.DefaultQuery("format", "csv")
		if format != "csv" && format != "jsonl" && format != "xlsx" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("unsupported format %q: use csv, jsonl or xlsx", format), nil))
			return
		}

		id := c.Param("id")
		fields, recs, err := svc.Records(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		site := id
		if job, err := svc.Job(id); err == nil {
			site = job.Site
		}
		name := export.FileName(site, time.Now(), format)
		c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))

		switch format {
		case "csv":
			c.Header("Content-Type", "text/csv; charset=utf-8")
			err = export.WriteCSV(c.Writer, fields, recs)
		case "jsonl":
			c.Header("Content-Type", "application/x-ndjson")
			err = export.WriteJSONL(c.Writer, recs)
		case "xlsx":
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			err = export.WriteXLSX(c.Writer, fields, recs)
		}
		if err != nil {
			// Headers are gone; the client sees a truncated body.
			_ = c.Error(models.NewScrapeError(models.ErrCodeExportFailed, "stream export", err))
		}
	}
}

// ListRuns returns a handler for GET /api/v1/runs.
//
// Optional query: site, limit (default 50).
func ListRuns(svc *crawler.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 500 {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "limit must be between 1 and 500", nil))
			return
		}
		runs, err := svc.Runs(c.Request.Context(), c.Query("site"), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}
