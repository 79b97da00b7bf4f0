package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/view"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// Session is one browser tab opened on a site. A human logs in through
// it, then crawls borrow its View.
type Session struct {
	Site string

	page   *rod.Page
	router *rod.HijackRouter
	view   *View
}

// Open creates a tab and, when url is set, navigates it there.
//
// Order matters:
//  1. Stealth injection and the hijack router must be in place before the
//     first navigation, they only apply to documents loaded after them.
//  2. Extra headers go in before navigation for the same reason.
func (b *Browser) Open(ctx context.Context, site, url string, timeout time.Duration) (*Session, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	// ── 1. New tab ──
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open a tab", err)
	}

	// ── 2. Stealth injection ──
	if b.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// ── 3. Extra headers ──
	if b.cfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": b.cfg.AcceptLanguage}),
		}.Call(page)
	}

	// ── 4. Resource blocking ──
	router := setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockTrackers)

	s := &Session{Site: site, page: page, router: router, view: &View{page: page}}

	// ── 5. Navigate ──
	if url != "" {
		if timeout <= 0 {
			timeout = b.cfg.NavigationTimeout
		}
		navCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.view.Navigate(navCtx, url); err != nil {
			s.Close()
			return nil, err
		}
	}
	slog.Info("session opened", "site", site, "url", url)
	return s, nil
}

// View returns the live view of the session's tab. It also implements
// view.Snapshotter.
func (s *Session) View() view.View {
	return s.view
}

// Close stops resource blocking and closes the tab.
func (s *Session) Close() {
	if s.router != nil {
		_ = s.router.Stop()
	}
	if err := s.page.Close(); err != nil {
		slog.Warn("session close failed", "site", s.Site, "error", err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
