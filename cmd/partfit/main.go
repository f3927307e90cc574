package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/use-agent/partfit/api"
	"github.com/use-agent/partfit/cache"
	"github.com/use-agent/partfit/catalog"
	"github.com/use-agent/partfit/config"
	"github.com/use-agent/partfit/fetch"
	"github.com/use-agent/partfit/jobs"
	"github.com/use-agent/partfit/session"
	"github.com/use-agent/partfit/store"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "ignoring unreadable .env: %v\n", err)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("partfit starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"catalog", cfg.Catalog.BaseURL,
		"storefront", cfg.Catalog.Storefront,
	)

	// ── 3. Launch the browser session ───────────────────────────────
	sess, err := session.Launch(cfg.Browser, cfg.Catalog)
	if err != nil {
		slog.Error("failed to launch browser session", "error", err)
		os.Exit(1)
	}

	// ── 4. Plain HTTP fetcher and specification cache ───────────────
	fetcher := fetch.New(cfg.Browser, cfg.Catalog.InfoFetchTimeout)
	defer fetcher.CloseIdleConnections()

	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxAge)
	defer cc.Close()

	svc := catalog.NewService(sess, cfg.Catalog, fetcher, cc)
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
	}()

	// ── 5. Job runner ───────────────────────────────────────────────
	jobStore := jobs.NewStore(cfg.Jobs.TTL, cfg.Jobs.SweepInterval)
	defer jobStore.Close()
	runner := jobs.NewRunner(svc, jobStore, cfg.Report, cfg.Catalog.Storefront, cfg.Webhook.Secret)

	// ── 5b. Optional row persistence ────────────────────────────────
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(context.Background(), cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		runner.AddSink(pg.Sink)
		slog.Info("fitment rows persisted to postgres")
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(svc, runner, cfg, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Running jobs get a grace period; their reports are saved per vehicle,
	// so a cancelled job still leaves its finished rows on disk.
	jobCtx, jobCancel := context.WithTimeout(context.Background(), cfg.Jobs.ShutdownGrace)
	defer jobCancel()
	if err := runner.Shutdown(jobCtx); err != nil {
		slog.Warn("fitment jobs cancelled", "error", err)
	}

	slog.Info("partfit stopped")
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
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
