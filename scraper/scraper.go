// Package scraper drives a real Chromium through go-rod. It owns the
// browser process and the single logged-in page a crawl reads through.
package scraper

import (
	"log/slog"
	"sync"

	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// Browser manages the browser lifecycle. The process is launched on first
// use and reused across sessions so a manual login survives them. It is
// safe for concurrent use.
type Browser struct {
	cfg config.BrowserConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBrowser returns an unlaunched browser.
func NewBrowser(cfg config.BrowserConfig) *Browser {
	return &Browser{cfg: cfg}
}

// connect returns the connected browser, launching it if needed.
func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(b.cfg.Headless).
			NoSandbox(b.cfg.NoSandbox)
		if b.cfg.BrowserBin != "" {
			l = l.Bin(b.cfg.BrowserBin)
		}
		if b.cfg.Proxy != "" {
			l = l.Proxy(b.cfg.Proxy)
		}
		if b.cfg.UserDataDir != "" {
			l = l.UserDataDir(b.cfg.UserDataDir)
		}

		// ── Stealth flags ──
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "TranslateUI")
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("no-first-run"))

		u, err := l.Launch()
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
		}
		controlURL = u
		b.launcher = l
		slog.Info("browser launched", "controlURL", controlURL, "headless", b.cfg.Headless)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher = nil
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	b.browser = browser
	return browser, nil
}

// Close shuts down a browser this process launched. A browser reached
// through ControlURL belongs to the user and is left running. The user-data
// dir is kept so the next launch is still logged in.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil && b.launcher != nil {
		if err := b.browser.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
	}
	b.browser = nil
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	slog.Info("browser shutdown complete")
}
