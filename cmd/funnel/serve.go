package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groblegark/funnel/internal/archive"
	"github.com/groblegark/funnel/internal/config"
	"github.com/groblegark/funnel/internal/dispatch"
	"github.com/groblegark/funnel/internal/engine"
	"github.com/groblegark/funnel/internal/events"
	"github.com/groblegark/funnel/internal/inbound"
	"github.com/groblegark/funnel/internal/ledger"
	"github.com/groblegark/funnel/internal/server"
	"github.com/groblegark/funnel/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the funnel server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (FUNNEL_NATS_URL not set)")
		}

		// Load provider chains. Without a providers file every channel ends
		// at the mock terminal provider.
		providerCfg := &dispatch.ProviderChainConfig{}
		if cfg.ProvidersFile != "" {
			providerCfg, err = dispatch.LoadConfig(cfg.ProvidersFile)
			if err != nil {
				publisher.Close()
				store.Close()
				return err
			}
			logger.Info("provider chains loaded", "file", cfg.ProvidersFile)
		} else {
			logger.Info("no providers file, dispatching to mock provider only")
		}
		dispatcher := dispatch.New(providerCfg, dispatch.WithLogger(logger))

		// Create the delivery ledger and the automation engine.
		led := ledger.New(store, publisher, logger)
		eng := engine.New(store, dispatcher, led, publisher,
			engine.WithWorkers(cfg.Workers),
			engine.WithLogger(logger),
		)
		engineCtx, engineCancel := context.WithCancel(context.Background())
		eng.Start(engineCtx)
		logger.Info("engine started", "workers", cfg.Workers)

		// Inbound replies route through the same ledger and wake the engine.
		router := inbound.New(store, led, publisher, eng, logger)

		// Start the ledger archive scheduler when any destination is configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 {
			var dests []archive.Destination

			if cfg.ArchiveS3Bucket != "" {
				s3Dest, err := archive.NewS3Destination(
					context.Background(),
					cfg.ArchiveS3Bucket,
					cfg.ArchiveS3Key,
					cfg.ArchiveS3Region,
					cfg.ArchiveS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 archive destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("archive S3 destination enabled", "bucket", cfg.ArchiveS3Bucket, "key", cfg.ArchiveS3Key)
				}
			}

			if cfg.ArchiveGitRepo != "" {
				gitDest := archive.NewGitDestination(cfg.ArchiveGitRepo, cfg.ArchiveGitFile, cfg.ArchiveGitBranch)
				dests = append(dests, gitDest)
				logger.Info("archive git destination enabled", "repo", cfg.ArchiveGitRepo, "file", cfg.ArchiveGitFile)
			}

			if len(dests) > 0 {
				scheduler = archive.NewScheduler(store, dests, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval)
			}
		}

		// Start HTTP server.
		funnelServer := server.NewFunnelServer(store, publisher, eng, dispatcher, led, router)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: funnelServer.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		logger.Info("funnel server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		eng.Stop()
		engineCancel()
		logger.Info("engine stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
