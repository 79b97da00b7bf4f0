// Package store keeps crawl history in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Run is one finished crawl as persisted.
type Run struct {
	models.RunSummary
	TotalPages int
	Error      string
	Records    []models.Record
}

// Store is a SQLite-backed run history. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, storeErr("create database directory", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr("open database", err)
	}
	// One connection: a second one to ":memory:" would see an empty
	// database, and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storeErr("apply schema", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its records atomically. Saving the same ID
// again replaces the earlier copy.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM records WHERE run_id = ?`, `DELETE FROM runs WHERE id = ?`} {
		if _, err := tx.ExecContext(ctx, q, run.ID); err != nil {
			return storeErr("replace run", err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, site, stop_reason, pages, total_pages, record_count, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Site, string(run.StopReason), run.Pages, run.TotalPages, len(run.Records),
		run.Error, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return storeErr("insert run", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (run_id, seq, data) VALUES (?, ?, ?)`)
	if err != nil {
		return storeErr("prepare records", err)
	}
	defer stmt.Close()
	for i, rec := range run.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return storeErr("encode record", err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, string(data)); err != nil {
			return storeErr("insert record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// ListRuns returns the newest runs first. An empty site lists every site;
// limit <= 0 means 50.
func (s *Store) ListRuns(ctx context.Context, site string, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, site, stop_reason, pages, record_count, started_at, finished_at
		 FROM runs WHERE (? = '' OR site = ?)
		 ORDER BY started_at DESC, id LIMIT ?`,
		site, site, limit,
	)
	if err != nil {
		return nil, storeErr("list runs", err)
	}
	defer rows.Close()

	out := []models.RunSummary{}
	for rows.Next() {
		var (
			r                 models.RunSummary
			stop              string
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.Site, &stop, &r.Pages, &r.Count, &started, &finished); err != nil {
			return nil, storeErr("scan run", err)
		}
		r.StopReason = models.StopReason(stop)
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list runs", err)
	}
	return out, nil
}

// GetRun returns one run's summary. An unknown ID yields JOB_NOT_FOUND.
func (s *Store) GetRun(ctx context.Context, id string) (models.RunSummary, error) {
	var (
		r                 models.RunSummary
		stop              string
		started, finished int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, site, stop_reason, pages, record_count, started_at, finished_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Site, &stop, &r.Pages, &r.Count, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return r, models.NewScrapeError(models.ErrCodeJobNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	if err != nil {
		return r, storeErr("look up run", err)
	}
	r.StopReason = models.StopReason(stop)
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	return r, nil
}

// Records returns a run's records in crawl order. An unknown ID yields
// JOB_NOT_FOUND.
func (s *Store) Records(ctx context.Context, id string) ([]models.Record, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM records WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, storeErr("load records", err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storeErr("scan record", err)
		}
		var rec models.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, storeErr("decode record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load records", err)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	return models.NewScrapeError(models.ErrCodeStoreFailed, op, err)
}
