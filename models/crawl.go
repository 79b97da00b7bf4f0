package models

// StopReason says why a pagination walk ended.
type StopReason string

const (
	StopCompleted    StopReason = "completed"     // reached the detected last page
	StopStalled      StopReason = "stalled"       // next page repeated the previous one
	StopLimitReached StopReason = "limit_reached" // requested page count done
	StopNoControl    StopReason = "no_control"    // no usable next-page control
	StopNoData       StopReason = "no_data"       // a later page was empty
	StopInterrupted  StopReason = "interrupted"   // canceled or the view went away
)

// CrawlRequest is the payload for POST /api/v1/crawl.
type CrawlRequest struct {
	// Site selects the column schema. Required.
	Site string `json:"site" binding:"required"`

	// MaxPages limits the walk. 0 means until the site runs out of pages.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=0,max=1000"`

	// SkipInit starts extracting on the page the session is already showing,
	// which is the normal case after a manual login.
	SkipInit bool `json:"skip_init"`

	// StartURL overrides the site's entry URL when SkipInit is false.
	StartURL string `json:"start_url,omitempty" binding:"omitempty,url"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// CrawlResponse is the immediate response for POST /api/v1/crawl.
type CrawlResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// CrawlStatusResponse is the response for GET /api/v1/crawl/:id.
type CrawlStatusResponse struct {
	ID         string       `json:"id"`
	Site       string       `json:"site"`
	Status     string       `json:"status"` // "processing", "completed", "interrupted", "failed"
	StopReason StopReason   `json:"stop_reason,omitempty"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages,omitempty"`
	Count      int          `json:"count"`
	Fields     []string     `json:"fields"`
	Records    []Record     `json:"records,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}
