// Command steelcrawl serves the steel price crawler API and replays saved
// listing pages offline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Carbocoon/SteelPriceCrawler/config"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "steelcrawl",
	Short:         "steelcrawl pages through logged-in steel price listings and exports the rows.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the environment configuration and sets up
// logging.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	initLogger(cfg.Log)
	return cfg, nil
}

// loadSites returns the built-in schemas plus any from the sites file.
func loadSites(cfg config.SitesConfig) (*schema.Registry, error) {
	sites := schema.Builtin()
	if cfg.File != "" {
		if err := sites.LoadFile(cfg.File); err != nil {
			return nil, err
		}
		slog.Info("site schemas loaded", "file", cfg.File)
	}
	return sites, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
