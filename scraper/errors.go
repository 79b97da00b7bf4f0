package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

// categorizeError maps a rod failure onto what the crawl engine needs to
// know: the caller gave up, one node misbehaved, or the tab is gone.
//
// Node-level failures (a detached node, a protocol error about one object,
// an eval error) come back as plain errors so the engine can skip the row
// or strategy. Everything else means the tab cannot be queried any more.
func categorizeError(err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, msg, err)
	case nodeLevel(err):
		return fmt.Errorf("%s: %w", msg, err)
	default:
		return view.Unavailable(msg, err)
	}
}

// categorizeNavigation is categorizeError for page loads, where a refused
// or failed load is reported as such instead of as a dead tab.
func categorizeNavigation(err error, msg string) error {
	var nav *rod.NavigationError
	if errors.As(err, &nav) {
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
	return categorizeError(err, msg)
}

func nodeLevel(err error) bool {
	var (
		notFound *rod.ObjectNotFoundError
		evalErr  *rod.EvalError
		cdpErr   *cdp.Error
	)
	return errors.As(err, &notFound) || errors.As(err, &evalErr) || errors.As(err, &cdpErr)
}
