package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"

	// Crawl engine codes.
	ErrCodeViewUnavailable = "VIEW_UNAVAILABLE"
	ErrCodeCanceled        = "CRAWL_CANCELED"
	ErrCodeSchemaInvalid   = "SCHEMA_INVALID"

	// Service codes for /api/v1/session and /api/v1/crawl.
	ErrCodeSessionNotOpen = "SESSION_NOT_OPEN"
	ErrCodeSessionBusy    = "SESSION_BUSY"
	ErrCodeJobNotFound    = "JOB_NOT_FOUND"
	ErrCodeExportFailed   = "EXPORT_FAILED"
	ErrCodeStoreFailed    = "STORE_FAILED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the outermost ScrapeError in err's chain,
// or "" when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Detail converts any error to an ErrorDetail. Errors without a code are
// reported as INTERNAL_ERROR.
func Detail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return &ErrorDetail{Code: se.Code, Message: err.Error()}
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
