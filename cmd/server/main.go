// Package main implements the entry point for the animegen API server,
// the gateway that accepts image and video generation tasks, hands them
// to the upstream providers, and reconciles their status.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animegen/animegen-api/internal/config"
	"github.com/animegen/animegen-api/internal/platform/imageapi"
	"github.com/animegen/animegen-api/internal/platform/logger"
	"github.com/animegen/animegen-api/internal/platform/postgres"
	"github.com/animegen/animegen-api/internal/platform/videoapi"
	"github.com/animegen/animegen-api/internal/service"
	"github.com/animegen/animegen-api/internal/task"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// run wires the application together and blocks until shutdown.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := runMigrations(db, appLogger); err != nil {
		return err
	}

	// Stores
	taskStore := postgres.NewPostgresTaskStore(db, appLogger)
	promptStore := postgres.NewPostgresPromptStore(db, appLogger)

	// Provider clients
	imageGen, err := imageapi.NewClient(cfg.ImageAPI, cfg.Gateway, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create image API client: %w", err)
	}
	videoGen, err := videoapi.NewClient(cfg.VideoAPI, cfg.Gateway, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create video API client: %w", err)
	}

	// Background machinery
	runner := task.NewRunner(task.RunnerConfig{
		WorkerCount: cfg.Worker.Count,
		QueueSize:   cfg.Worker.QueueSize,
	}, appLogger)

	// Services
	resolver, err := service.NewPromptResolver(promptStore, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create prompt resolver: %w", err)
	}
	taskService, err := service.NewTaskService(
		taskStore,
		resolver,
		imageGen,
		videoGen,
		runner,
		cfg.Reconciler.MaxConcurrentPolls,
		appLogger,
	)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}
	modelService, err := service.NewModelService(promptStore, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create model service: %w", err)
	}

	reconciler := task.NewReconciler(taskService, task.ReconcilerConfig{
		Interval: cfg.Reconciler.Interval,
	}, appLogger)

	runner.Start()
	defer runner.Stop()
	reconciler.Start()
	defer reconciler.Stop()

	// HTTP server
	router := newRouter(cfg, taskService, modelService)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	case sig := <-stop:
		appLogger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	appLogger.Info("server stopped")
	return nil
}
