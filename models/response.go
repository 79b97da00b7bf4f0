package models

import "time"

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "degraded"
	Uptime  string       `json:"uptime"`
	Session SessionState `json:"session"`
	Version string       `json:"version"`
}

// SessionState describes the browser session the crawls borrow.
type SessionState struct {
	Open bool   `json:"open"`
	Site string `json:"site,omitempty"`
	URL  string `json:"url,omitempty"`
	Busy bool   `json:"busy"`

	// LoginRequired is true while the page still shows a login prompt.
	LoginRequired bool `json:"login_required"`
}

// SessionResponse is the response for the /api/v1/session endpoints.
type SessionResponse struct {
	Success bool         `json:"success"`
	Session SessionState `json:"session"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// SiteInfo is one entry of GET /api/v1/sites.
type SiteInfo struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	EntryURL string   `json:"entry_url"`
	Fields   []string `json:"fields"`
}

// RunSummary is one stored crawl run.
type RunSummary struct {
	ID         string     `json:"id"`
	Site       string     `json:"site"`
	StopReason StopReason `json:"stop_reason"`
	Pages      int        `json:"pages"`
	Count      int        `json:"count"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// ErrorResponse wraps an error for endpoints without a richer body.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
