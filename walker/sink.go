package walker

import (
	"context"
	"log/slog"

	"github.com/Carbocoon/SteelPriceCrawler/models"
)

// EventKind names something that happened during a walk.
type EventKind string

const (
	EventTotalDetected EventKind = "total_detected"
	EventPageExtracted EventKind = "page_extracted"
	EventTextFallback  EventKind = "text_fallback"
	EventRowSkipped    EventKind = "row_skipped"
	EventAdvanced      EventKind = "advanced"
	EventStalled       EventKind = "stalled"
	EventLayoutDrift   EventKind = "layout_drift"
	EventStopped       EventKind = "stopped"
	EventInterrupted   EventKind = "interrupted"
	EventLookupFailed  EventKind = "lookup_failed"
)

// Event carries the fields relevant to its Kind; the rest are zero.
type Event struct {
	Kind EventKind
	Site string
	Page int

	Records  int    // page_extracted, stopped: records on the page / in total
	Gathered int    // records accepted so far, on every event of a walk
	Total    int    // total_detected
	Row      int    // row_skipped
	Reason   string // row_skipped: the mapper's skip reason; lookup_failed: what failed
	Strategy string // advanced: the next-control strategy that fired
	Distance int    // layout_drift

	Stop     models.StopReason // stopped, interrupted
	Snapshot *Snapshot         // page_extracted
	Err      error
}

// Sink receives walk events. Emit is called synchronously from the walk,
// while the view still shows the page the event is about.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// Tee fans events out to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type tee []Sink

func (t tee) Emit(ctx context.Context, ev Event) {
	for _, s := range t {
		s.Emit(ctx, ev)
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Emit(ctx context.Context, ev Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("site", ev.Site, "page", ev.Page)

	switch ev.Kind {
	case EventRowSkipped:
		logger.DebugContext(ctx, "row skipped", "row", ev.Row, "reason", ev.Reason)
	case EventTextFallback:
		logger.InfoContext(ctx, "no table located, scanning page text")
	case EventTotalDetected:
		logger.InfoContext(ctx, "total pages detected", "total", ev.Total)
	case EventPageExtracted:
		logger.InfoContext(ctx, "page extracted", "records", ev.Records)
	case EventAdvanced:
		logger.DebugContext(ctx, "advanced to next page", "strategy", ev.Strategy)
	case EventStalled:
		logger.WarnContext(ctx, "page repeats the previous one, stopping")
	case EventLayoutDrift:
		logger.WarnContext(ctx, "page layout drifted", "distance", ev.Distance)
	case EventStopped:
		logger.InfoContext(ctx, "walk finished", "stop", ev.Stop, "records", ev.Records)
	case EventInterrupted:
		logger.ErrorContext(ctx, "walk interrupted", "records", ev.Records, "error", ev.Err)
	case EventLookupFailed:
		logger.DebugContext(ctx, "lookup failed", "what", ev.Reason, "error", ev.Err)
	default:
		logger.DebugContext(ctx, string(ev.Kind))
	}
}
