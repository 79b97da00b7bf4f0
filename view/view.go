// Package view is the narrow query surface the crawl engine reads a rendered
// page through. The engine borrows a View for the length of a walk and never
// opens or closes one itself.
package view

import (
	"context"
	"errors"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
)

// View is a rendered document plus the navigation actions a walk needs.
// Patterns are CSS selectors.
type View interface {
	Find(ctx context.Context, pattern string) ([]Element, error)
	Text(ctx context.Context) (string, error)
	WaitFor(ctx context.Context, pattern string, timeout time.Duration) error
	Navigate(ctx context.Context, url string) error
}

// Element is one node of a View.
type Element interface {
	Tag(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	// Attribute reports the value and whether the attribute is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	Find(ctx context.Context, pattern string) ([]Element, error)
	Children(ctx context.Context) ([]Element, error)
	Click(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
}

// Snapshotter is implemented by views that can dump their current state.
type Snapshotter interface {
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	URL(ctx context.Context) (string, error)
}

// ErrNoScreenshot is returned by snapshotters that cannot render pixels.
var ErrNoScreenshot = errors.New("view: screenshots not supported")

// Unavailable wraps an adapter fault so the engine can tell a dead view
// from an empty page.
func Unavailable(msg string, err error) error {
	return models.NewScrapeError(models.ErrCodeViewUnavailable, msg, err)
}

// IsUnavailable reports whether err means the view can no longer be queried.
func IsUnavailable(err error) bool {
	return models.IsCode(err, models.ErrCodeViewUnavailable)
}

// Interrupted reports whether err should end a walk: the caller's context
// is done or the view is gone.
func Interrupted(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		IsUnavailable(err)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
