package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parashasongs/internal/config"
	"parashasongs/internal/db"
	"parashasongs/internal/metrics"
	"parashasongs/internal/moderation"
	"parashasongs/internal/notify"
	"parashasongs/internal/server"
	"parashasongs/internal/visits"
)

// notifyDrainTimeout bounds how long shutdown waits for in-flight notifications.
const notifyDrainTimeout = 10 * time.Second

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := cfg.InitLogger()

	ref, err := config.LoadReference(cfg.ReferenceFile)
	if err != nil {
		logger.Error("failed to load reference data", "error", err)
		os.Exit(1)
	}

	// Initialize database; Open runs migrations.
	database, err := db.Open(ctx, db.Options{
		Driver:      cfg.DatabaseDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("database ready", "driver", cfg.DatabaseDriver)

	metrics.Init(database)

	dispatcher := notify.New(cfg, logger)
	manager := moderation.NewManager(database, ref, dispatcher, cfg, logger)
	counter := visits.NewCounter(database)

	srv := server.New(cfg, logger)
	if err := srv.RegisterRoutes(ctx, server.Deps{
		DB:        database,
		Manager:   manager,
		Visits:    counter,
		Reference: ref,
	}); err != nil {
		logger.Error("failed to register routes", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	if err := srv.Shutdown(); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	drained := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(notifyDrainTimeout):
		logger.Warn("pending notifications abandoned at shutdown")
	}
	logger.Info("server exited")
}
