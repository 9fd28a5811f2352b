package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datfetch/datfetch/internal/batch"
	"github.com/datfetch/datfetch/internal/config"
	"github.com/datfetch/datfetch/internal/datfile"
	"github.com/datfetch/datfetch/internal/fetch"
	"github.com/datfetch/datfetch/internal/http/rest"
	"github.com/datfetch/datfetch/internal/logctx"
	"github.com/datfetch/datfetch/internal/notifier"
	"github.com/datfetch/datfetch/internal/pipeline"
	"github.com/datfetch/datfetch/internal/storage/sqlite"
	"github.com/datfetch/datfetch/internal/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("datfetch starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Manifest
	fixdat, err := datfile.ParseFile(cfg.FixdatPath)
	if err != nil {
		return fmt.Errorf("failed to read fixdat: %w", err)
	}

	logger.Info("fixdat loaded", "name", fixdat.Name, "missing_titles", len(fixdat.Titles))

	// =========================================================================
	// Telemetry
	tel, err := telemetry.New(telemetry.Config{Enabled: cfg.Metrics.Enabled, ServiceName: "datfetch"})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	// =========================================================================
	// Storage
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open outcome database: %w", err)
	}
	defer database.Close()

	// =========================================================================
	// Pipeline
	client := &http.Client{Transport: telemetry.HTTPTransport(http.DefaultTransport)}

	fetcher := fetch.NewFetcher(client,
		fetch.WithStallTimeout(cfg.StallTimeout),
		fetch.WithProgressInterval(cfg.ProgressInterval),
	)

	p := pipeline.New(client, batch.NewCoordinator(fetcher, cfg.MaxParallel), tel)
	p.Repo = sqlite.NewOutcomeRepository(database)

	if cfg.WebhookURL != "" {
		p.Notifier = notifier.NewWebhookNotifier(cfg.WebhookURL)
	}

	// =========================================================================
	// Status server
	var server *http.Server

	if cfg.Web.Enabled {
		server = &http.Server{
			Addr:         cfg.Web.BindAddress,
			Handler:      rest.NewHandler(p, tel.MetricsHandler()),
			ReadTimeout:  cfg.Web.ReadTimeout,
			WriteTimeout: cfg.Web.WriteTimeout,
			IdleTimeout:  cfg.Web.IdleTimeout,
		}

		go func() {
			logger.Info("status server listening", "addr", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", "err", err)
			}
		}()
	}

	// =========================================================================
	// Run
	report, err := p.Execute(ctx, pipeline.Run{
		BaseURL:     cfg.ListingBaseURL,
		ListingPath: cfg.ListingPath,
		Titles:      fixdat.Titles,
		DestDir:     cfg.DownloadDir,
	})

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("status server shutdown failed", "err", shutdownErr)
		}
	}

	if err != nil {
		return err
	}

	logger.Info("run complete",
		"run_id", report.RunID,
		"summary", report.Summary(),
		"elapsed", report.Elapsed.Round(time.Millisecond))

	return nil
}
