package locator

import (
	"context"

	"github.com/Carbocoon/SteelPriceCrawler/view"
)

// FailureFunc receives a lookup error that did not end the walk. what names
// the strategy or pattern that failed.
type FailureFunc func(ctx context.Context, what string, err error)

type failureKey struct{}

// WithFailureFunc returns a context whose lookups report recoverable
// failures to fn.
func WithFailureFunc(ctx context.Context, fn FailureFunc) context.Context {
	return context.WithValue(ctx, failureKey{}, fn)
}

// Soft passes through errors that end the walk. Any other error is handed
// to the context's FailureFunc, if one is set, and dropped.
func Soft(ctx context.Context, err error, what string) error {
	if err == nil {
		return nil
	}
	if view.Interrupted(ctx, err) {
		return err
	}
	if fn, ok := ctx.Value(failureKey{}).(FailureFunc); ok && fn != nil {
		fn(ctx, what, err)
	}
	return nil
}
