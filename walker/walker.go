// Package walker drives a crawl across the pages of one listing.
//
// A walk is a small state machine:
//
//	Init -> PageReady -> Extracting -> Advancing -> PageReady ... -> Done(reason)
//
// It reads the page through a borrowed view.View, maps rows with the locator
// and mapper (or the text scanner when no grid is found) and stops on the
// first of: page limit, detected total, a page repeating the previous one,
// an empty page after the first, no usable next control, or interruption.
package walker

import (
	"context"
	"errors"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/fingerprint"
	"github.com/Carbocoon/SteelPriceCrawler/locator"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/view"
)

// Options tunes a walk. Zero durations skip the corresponding wait.
type Options struct {
	// MaxPages caps extraction cycles; 0 means no cap.
	MaxPages int

	// SkipInit starts from whatever page the view already shows.
	SkipInit bool

	// StartURL is opened during Init when set.
	StartURL string

	RenderWait  time.Duration // after Init navigation
	SettleDelay time.Duration // after clicking a next control
	ScrollPause time.Duration // between scrolling a control into view and clicking it
	WaitTimeout time.Duration // bound on waiting for the table pattern

	Sink Sink

	// TrackLayout compares the DOM structure of consecutive pages and emits
	// layout_drift events. It needs a view.Snapshotter.
	TrackLayout bool

	// Next overrides the next-control cascade.
	Next []NextStrategy
}

// Result is what a walk gathered. It is returned on every termination.
type Result struct {
	Records []models.Record
	Stop    models.StopReason
	Pages   int // extraction cycles run
	Total   int // detected page count, 0 if unknown
}

// Snapshot is the extraction of one page.
type Snapshot struct {
	Page        int
	Records     []models.Record
	Fingerprint string
	Fallback    bool // records came from the text scanner
}

type walk struct {
	v    view.View
	s    *schema.Schema
	opts Options
	sink Sink
	next []NextStrategy
	res  *Result

	layout     uint64
	haveLayout bool
}

// Run walks pages until a stop condition. The error is non-nil only when
// the walk was interrupted; it is a *models.ScrapeError (CRAWL_CANCELED,
// SCRAPE_TIMEOUT, VIEW_UNAVAILABLE, or NAVIGATION_FAILED when StartURL
// could not be opened) and Result still holds everything gathered so far.
func Run(ctx context.Context, v view.View, s *schema.Schema, opts Options) (*Result, error) {
	w := &walk{
		v:    v,
		s:    s,
		opts: opts,
		sink: opts.Sink,
		next: opts.Next,
		res:  &Result{Records: []models.Record{}},
	}
	if w.sink == nil {
		w.sink = discard{}
	}
	if w.next == nil {
		w.next = DefaultNext()
	}
	return w.run(w.reporting(ctx))
}

func (w *walk) run(ctx context.Context) (*Result, error) {
	// ── 1. Init ──
	if !w.opts.SkipInit {
		if w.opts.StartURL != "" {
			if err := w.v.Navigate(ctx, w.opts.StartURL); err != nil {
				return w.interrupt(ctx, 0, err)
			}
		}
		if err := view.Sleep(ctx, w.opts.RenderWait); err != nil {
			return w.interrupt(ctx, 0, err)
		}
	}
	total, err := DetectTotal(ctx, w.v, w.s)
	if err != nil {
		return w.interrupt(ctx, 0, err)
	}
	w.res.Total = total
	if total > 0 {
		w.emit(ctx, Event{Kind: EventTotalDetected, Total: total})
	}

	var prev string
	for cursor := 1; ; cursor++ {
		// ── 2. PageReady ──
		if w.opts.MaxPages > 0 && cursor > w.opts.MaxPages {
			return w.stop(ctx, cursor-1, models.StopLimitReached)
		}
		if w.res.Total > 0 && cursor > w.res.Total {
			return w.stop(ctx, cursor-1, models.StopCompleted)
		}
		if len(w.s.Patterns.Tables) > 0 {
			// Not finding the table is left to the locator.
			_ = w.v.WaitFor(ctx, w.s.Patterns.Tables[0], w.opts.WaitTimeout)
		}
		if ctx.Err() != nil {
			return w.interrupt(ctx, cursor, ctx.Err())
		}

		// ── 3. Extracting ──
		snap, err := w.extract(ctx, cursor)
		w.res.Pages++
		if err != nil {
			w.res.Records = append(w.res.Records, snap.Records...)
			return w.interrupt(ctx, cursor, err)
		}
		w.trackLayout(ctx, cursor)
		w.emit(ctx, Event{Kind: EventPageExtracted, Page: cursor, Records: len(snap.Records), Snapshot: snap})

		if cursor > 1 && snap.Fingerprint == prev {
			w.emit(ctx, Event{Kind: EventStalled, Page: cursor})
			return w.stop(ctx, cursor, models.StopStalled)
		}
		if len(snap.Records) == 0 && cursor > 1 {
			return w.stop(ctx, cursor, models.StopNoData)
		}
		w.res.Records = append(w.res.Records, snap.Records...)
		prev = snap.Fingerprint

		// ── 4. Advancing ──
		if w.opts.MaxPages > 0 && cursor >= w.opts.MaxPages {
			continue
		}
		if w.res.Total > 0 && cursor >= w.res.Total {
			continue
		}
		ok, err := w.advance(ctx, cursor)
		if err != nil {
			return w.interrupt(ctx, cursor, err)
		}
		if !ok {
			return w.stop(ctx, cursor, models.StopNoControl)
		}
	}
}

// advance activates the first control a next strategy yields.
func (w *walk) advance(ctx context.Context, page int) (bool, error) {
	for _, st := range w.next {
		el, err := st.Find(ctx, w.v, w.s)
		if err != nil {
			return false, err
		}
		if el == nil {
			continue
		}
		if err := w.activate(ctx, el); err != nil {
			if view.Interrupted(ctx, err) {
				return false, err
			}
			continue
		}
		w.emit(ctx, Event{Kind: EventAdvanced, Page: page, Strategy: st.Name})
		return true, nil
	}
	return false, nil
}

func (w *walk) activate(ctx context.Context, el view.Element) error {
	if err := el.ScrollIntoView(ctx); err != nil && view.Interrupted(ctx, err) {
		return err
	}
	if err := view.Sleep(ctx, w.opts.ScrollPause); err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return err
	}
	return view.Sleep(ctx, w.opts.SettleDelay)
}

func (w *walk) trackLayout(ctx context.Context, page int) {
	if !w.opts.TrackLayout {
		return
	}
	snap, ok := w.v.(view.Snapshotter)
	if !ok {
		return
	}
	doc, err := snap.HTML(ctx)
	if err != nil {
		return
	}
	h := fingerprint.Structure(doc)
	if w.haveLayout && !fingerprint.Near(w.layout, h, fingerprint.DriftThreshold) {
		w.emit(ctx, Event{Kind: EventLayoutDrift, Page: page, Distance: fingerprint.Distance(w.layout, h)})
	}
	w.layout, w.haveLayout = h, true
}

func (w *walk) stop(ctx context.Context, page int, reason models.StopReason) (*Result, error) {
	w.res.Stop = reason
	w.emit(ctx, Event{Kind: EventStopped, Page: page, Stop: reason, Records: len(w.res.Records)})
	return w.res, nil
}

func (w *walk) interrupt(ctx context.Context, page int, cause error) (*Result, error) {
	w.res.Stop = models.StopInterrupted

	code := models.ErrCodeCanceled
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), ctx.Err() == nil && errors.Is(cause, context.DeadlineExceeded):
		code = models.ErrCodeTimeout
	case ctx.Err() == nil && models.CodeOf(cause) != "":
		code = models.CodeOf(cause)
	case ctx.Err() == nil:
		code = models.ErrCodeViewUnavailable
	}
	err := models.NewScrapeError(code, "crawl interrupted", cause)
	w.emit(ctx, Event{Kind: EventInterrupted, Page: page, Stop: models.StopInterrupted, Records: len(w.res.Records), Err: err})
	return w.res, err
}

func (w *walk) emit(ctx context.Context, ev Event) {
	ev.Site = w.s.Name
	if w.res != nil {
		ev.Gathered = len(w.res.Records)
	}
	w.sink.Emit(ctx, ev)
}

// reporting routes recoverable lookup failures to the sink.
func (w *walk) reporting(ctx context.Context) context.Context {
	return locator.WithFailureFunc(ctx, func(ctx context.Context, what string, err error) {
		w.emit(ctx, Event{Kind: EventLookupFailed, Reason: what, Err: err})
	})
}
