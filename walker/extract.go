package walker

import (
	"context"
	"errors"

	"github.com/Carbocoon/SteelPriceCrawler/fingerprint"
	"github.com/Carbocoon/SteelPriceCrawler/locator"
	"github.com/Carbocoon/SteelPriceCrawler/mapper"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/textscan"
	"github.com/Carbocoon/SteelPriceCrawler/view"
)

// Extract reads the current page once, without pagination. It is the
// Extracting state of Run, exposed for single-page replays.
func Extract(ctx context.Context, v view.View, s *schema.Schema, sink Sink) (*Snapshot, error) {
	if sink == nil {
		sink = discard{}
	}
	w := &walk{v: v, s: s, sink: sink}
	return w.extract(w.reporting(ctx), 1)
}

// extract returns the page's snapshot. On interruption the snapshot holds
// the rows parsed before it, and the error is the cause.
func (w *walk) extract(ctx context.Context, page int) (*Snapshot, error) {
	snap := &Snapshot{Page: page}
	defer func() { snap.Fingerprint = fingerprint.Records(snap.Records) }()

	table, err := locator.LocateTable(ctx, w.v, w.s)
	if errors.Is(err, locator.ErrNotFound) {
		return snap, w.fallback(ctx, snap)
	}
	if err != nil {
		return snap, err
	}

	rows, err := locator.LocateRows(ctx, w.v, table, w.s)
	if err != nil {
		return snap, err
	}
	for i, row := range rows {
		rec, err := w.readRow(ctx, page, i, row)
		if err != nil {
			return snap, err
		}
		if rec != nil {
			snap.Records = append(snap.Records, rec)
		}
	}
	return snap, nil
}

// readRow maps one row. A row that cannot be read is skipped; only an
// interruption is returned as an error.
func (w *walk) readRow(ctx context.Context, page, index int, row view.Element) (models.Record, error) {
	text, err := row.Text(ctx)
	if err != nil {
		if view.Interrupted(ctx, err) {
			return nil, err
		}
		w.emit(ctx, Event{Kind: EventRowSkipped, Page: page, Row: index, Reason: "unreadable", Err: err})
		return nil, nil
	}
	cells, err := locator.ReadCells(ctx, row, w.s)
	if err != nil {
		if view.Interrupted(ctx, err) {
			return nil, err
		}
		w.emit(ctx, Event{Kind: EventRowSkipped, Page: page, Row: index, Reason: "unreadable", Err: err})
		return nil, nil
	}

	rec, skip := mapper.MapRow(cells, text, index, w.s)
	if skip != mapper.SkipNone {
		w.emit(ctx, Event{Kind: EventRowSkipped, Page: page, Row: index, Reason: skip.String()})
		return nil, nil
	}
	return rec, nil
}

func (w *walk) fallback(ctx context.Context, snap *Snapshot) error {
	w.emit(ctx, Event{Kind: EventTextFallback, Page: snap.Page})
	text, err := w.v.Text(ctx)
	if err != nil {
		if view.Interrupted(ctx, err) {
			return err
		}
		return nil
	}
	snap.Records = textscan.Extract(text, w.s)
	snap.Fallback = true
	return nil
}
