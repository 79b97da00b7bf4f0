package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/api"
	"github.com/Carbocoon/SteelPriceCrawler/cleaner"
	"github.com/Carbocoon/SteelPriceCrawler/crawler"
	"github.com/Carbocoon/SteelPriceCrawler/jobs"
	"github.com/Carbocoon/SteelPriceCrawler/metrics"
	"github.com/Carbocoon/SteelPriceCrawler/scraper"
	"github.com/Carbocoon/SteelPriceCrawler/store"
	"github.com/Carbocoon/SteelPriceCrawler/webhook"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds draining requests and saving interrupted crawls.
const shutdownTimeout = 30 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the browser and the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	// ── 1. Load configuration ──
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("steelcrawl starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"headless", cfg.Browser.Headless,
	)

	sites, err := loadSites(cfg.Sites)
	if err != nil {
		return err
	}

	// ── 2. Browser (launched on first session) ──
	browser := scraper.NewBrowser(cfg.Browser)
	defer browser.Close()

	// ── 3. History store ──
	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	// ── 4. Crawl service ──
	m := metrics.NewMetrics()
	hooks := webhook.NewClient(10 * time.Second)
	var dumper *cleaner.Dumper
	if cfg.Debug.DumpDir != "" {
		dumper = cleaner.NewDumper(cfg.Debug.DumpDir)
	}

	svc := crawler.New(crawler.Options{
		Crawl:     cfg.Crawl,
		ExportDir: cfg.Export.Dir,
		Sites:     sites,
		Open:      opener(browser),
		Jobs:      jobs.NewRegistry(cfg.Jobs.MaxEntries, cfg.Jobs.TTL),
		Store:     st,
		Webhooks:  hooks,
		Metrics:   m,
		Dumper:    dumper,
	})

	// ── 5. HTTP server ──
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(svc, m, cfg, time.Now()),
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ── 6. Graceful shutdown ──
	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("crawl shutdown incomplete", "error", err)
	}
	hooks.Wait()

	slog.Info("steelcrawl stopped")
	return nil
}

// opener adapts the browser to the crawler's session interface.
func opener(b *scraper.Browser) crawler.Opener {
	return func(ctx context.Context, site, url string, timeout time.Duration) (crawler.Session, error) {
		s, err := b.Open(ctx, site, url, timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
