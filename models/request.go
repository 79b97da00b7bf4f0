package models

// SessionRequest is the payload for POST /api/v1/session.
type SessionRequest struct {
	// Site selects which entry URL the browser opens. Required.
	Site string `json:"site" binding:"required"`

	// URL overrides the site's entry URL.
	URL string `json:"url,omitempty" binding:"omitempty,url"`

	// Timeout is the navigation deadline in seconds.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
}

// Defaults applies default values to unset fields.
func (r *SessionRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}
