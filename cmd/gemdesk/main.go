// Command gemdesk: local bridge daemon between a desktop shell and the Gem
// video portal.
//
//	serve    Run the host API: login flow, catalog, manifest resolution (default)
//	catalog  One-shot: fetch the sports catalog and print it as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gemdesk/gemdesk/internal/catalog"
	"github.com/gemdesk/gemdesk/internal/config"
	"github.com/gemdesk/gemdesk/internal/host"
	"github.com/gemdesk/gemdesk/internal/login"
	"github.com/gemdesk/gemdesk/internal/manifest"
	"github.com/gemdesk/gemdesk/internal/session"
	"github.com/gemdesk/gemdesk/internal/surface"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(2)
	}
	cfg := config.Load()
	log := newLogger(cfg.LogLevel, cfg.LogFormat)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve":
		if err := runServe(cfg, log); err != nil {
			log.Error("serve", "error", err)
			os.Exit(1)
		}
	case "catalog":
		if err := runCatalog(cfg, log); err != nil {
			log.Error("catalog", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve or catalog)\n", cmd)
		os.Exit(2)
	}
}

func runServe(cfg *config.Config, log *slog.Logger) error {
	store := session.NewStore()
	browser := surface.NewBrowser(cfg.BrowserControlURL, cfg.BrowserHeadless)
	defer browser.Close()

	metrics := host.NewMetrics()
	broker := host.NewBroker()

	controller := login.NewController(login.Config{
		LoginURL:     cfg.LoginURL,
		LandingURL:   cfg.LandingURL,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxPollAttempts,
		SessionTTL:   cfg.SessionTTL,
	}, store, browser, host.EventSink(broker, metrics, log), log)

	aggregator := catalog.NewAggregator(catalog.Config{
		Endpoint:     cfg.CatalogURL,
		PageSize:     cfg.PageSize,
		MaxPages:     cfg.MaxPages,
		PageInterval: cfg.PageInterval,
	}, log)

	resolver := manifest.NewResolver(manifest.Config{
		Endpoint: cfg.ValidationURL,
	}, store, log)

	server := host.New(store, controller, aggregator, resolver, broker, metrics, log)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: server.Router()}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Info("gemdesk serving", "addr", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	log.Info("shutdown signal received")
	controller.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runCatalog(cfg *config.Config, log *slog.Logger) error {
	aggregator := catalog.NewAggregator(catalog.Config{
		Endpoint:     cfg.CatalogURL,
		PageSize:     cfg.PageSize,
		MaxPages:     cfg.MaxPages,
		PageInterval: cfg.PageInterval,
	}, log)

	streams, err := aggregator.Fetch(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(streams)
}

// newLogger builds a slog logger from the configured level and format.
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}
