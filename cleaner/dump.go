// Package cleaner saves what the browser was showing when a page yielded
// no data: the raw source, a sanitized markdown rendering and a screenshot.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/microcosm-cc/bluemonday"
)

// Dump file names.
const (
	SourceFile     = "page_source.html"
	MarkdownFile   = "page.md"
	ScreenshotFile = "page.png"
)

// Dumper writes page dumps under Dir. It is safe for concurrent use.
type Dumper struct {
	Dir string

	conv   *converter.Converter
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewDumper returns a dumper writing under dir.
func NewDumper(dir string) *Dumper {
	return &Dumper{
		Dir:    dir,
		conv:   newMarkdownConverter(),
		policy: newPolicy(),
		now:    time.Now,
	}
}

// Dump saves the page v currently shows into a fresh directory and returns
// its path. The screenshot is skipped when the view cannot take one.
func (d *Dumper) Dump(ctx context.Context, v view.Snapshotter, site string, page int) (string, error) {
	// ── 1. Read the page ──
	source, err := v.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("dump: read html: %w", err)
	}
	pageURL, _ := v.URL(ctx)

	dir := filepath.Join(d.Dir, fmt.Sprintf("%s_%s_p%d", site, d.now().Format("20060102_150405"), page))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("dump: create %q: %w", dir, err)
	}

	// ── 2. Source ──
	if err := os.WriteFile(filepath.Join(dir, SourceFile), []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("dump: write source: %w", err)
	}

	// ── 3. Markdown ──
	md, err := ToMarkdown(d.conv, d.policy, Strip(source, noise), domainOf(pageURL))
	if err != nil {
		slog.Warn("dump: markdown conversion failed", "site", site, "page", page, "error", err)
	} else if err := os.WriteFile(filepath.Join(dir, MarkdownFile), []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("dump: write markdown: %w", err)
	}

	// ── 4. Screenshot ──
	png, err := v.Screenshot(ctx)
	switch {
	case errors.Is(err, view.ErrNoScreenshot):
	case err != nil:
		slog.Warn("dump: screenshot failed", "site", site, "page", page, "error", err)
	default:
		if err := os.WriteFile(filepath.Join(dir, ScreenshotFile), png, 0o644); err != nil {
			return "", fmt.Errorf("dump: write screenshot: %w", err)
		}
	}

	slog.Info("page dumped", "site", site, "page", page, "dir", dir)
	return dir, nil
}

// Sink returns a walker.Sink that dumps every page extracted with zero
// records. Views that cannot snapshot are ignored.
func (d *Dumper) Sink(v view.View) walker.Sink {
	snap, ok := v.(view.Snapshotter)
	if !ok || d == nil || d.Dir == "" {
		return nil
	}
	return walker.SinkFunc(func(ctx context.Context, ev walker.Event) {
		if ev.Kind != walker.EventPageExtracted || ev.Records > 0 {
			return
		}
		if _, err := d.Dump(ctx, snap, ev.Site, ev.Page); err != nil {
			slog.Warn("page dump failed", "site", ev.Site, "page", ev.Page, "error", err)
		}
	})
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
