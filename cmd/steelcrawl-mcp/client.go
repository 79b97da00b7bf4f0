package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/go-resty/resty/v2"
)

// statusProcessing is the job status while a walk is still running.
const statusProcessing = "processing"

// apiClient talks to a running steelcrawl server.
type apiClient struct {
	http *resty.Client

	// PollInterval is the wait between crawl status checks.
	PollInterval time.Duration
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(2*time.Minute).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &apiClient{http: c, PollInterval: 2 * time.Second}
}

// apiError is the error body every endpoint returns.
type apiError struct {
	Error *models.ErrorDetail `json:"error"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var e apiError
	req := c.http.R().SetContext(ctx).SetResult(out).SetError(&e)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	if resp.IsError() {
		if e.Error != nil {
			return fmt.Errorf("[%s] %s", e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("API returned %s", resp.Status())
	}
	return nil
}

func (c *apiClient) Sites(ctx context.Context) ([]models.SiteInfo, error) {
	var out struct {
		Sites []models.SiteInfo `json:"sites"`
	}
	err := c.do(ctx, "GET", "/api/v1/sites", nil, &out)
	return out.Sites, err
}

func (c *apiClient) OpenSession(ctx context.Context, req models.SessionRequest) (models.SessionState, error) {
	var out models.SessionResponse
	err := c.do(ctx, "POST", "/api/v1/session", req, &out)
	return out.Session, err
}

func (c *apiClient) Session(ctx context.Context) (models.SessionState, error) {
	var out models.SessionResponse
	err := c.do(ctx, "GET", "/api/v1/session", nil, &out)
	return out.Session, err
}

func (c *apiClient) StartCrawl(ctx context.Context, req models.CrawlRequest) (models.CrawlResponse, error) {
	var out models.CrawlResponse
	err := c.do(ctx, "POST", "/api/v1/crawl", req, &out)
	return out, err
}

func (c *apiClient) Crawl(ctx context.Context, id string, withRecords bool) (models.CrawlStatusResponse, error) {
	var out models.CrawlStatusResponse
	path := "/api/v1/crawl/" + id
	if !withRecords {
		path += "?records=false"
	}
	err := c.do(ctx, "GET", path, nil, &out)
	return out, err
}

func (c *apiClient) CancelCrawl(ctx context.Context, id string) (models.CrawlStatusResponse, error) {
	var out models.CrawlStatusResponse
	err := c.do(ctx, "POST", "/api/v1/crawl/"+id+"/cancel", nil, &out)
	return out, err
}

// WaitCrawl polls a crawl until it leaves the processing state, then
// returns it with its records.
func (c *apiClient) WaitCrawl(ctx context.Context, id string) (models.CrawlStatusResponse, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.CrawlStatusResponse{}, ctx.Err()
		case <-ticker.C:
			st, err := c.Crawl(ctx, id, false)
			if err != nil {
				return st, err
			}
			if st.Status != statusProcessing {
				return c.Crawl(ctx, id, true)
			}
		}
	}
}
