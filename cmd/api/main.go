package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/api/handlers"
	"github.com/pratik-mahalle/tocguard/internal/api/router"
	"github.com/pratik-mahalle/tocguard/internal/cache"
	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/detector"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
	"github.com/pratik-mahalle/tocguard/internal/repository/postgres"
	"github.com/pratik-mahalle/tocguard/internal/services"
	"github.com/pratik-mahalle/tocguard/internal/worker"
	"github.com/pratik-mahalle/tocguard/migrations"
)

// @title TOCGuard API
// @version 1.0
// @description Constraint rules, buffer monitoring and drum analysis
// @BasePath /api/v1/toc
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	if err := run(cfg, log); err != nil {
		log.FatalWithErr(err, "Server exited with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := postgres.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	schema, err := migrations.GetFS(db.Driver())
	if err != nil {
		return err
	}
	applied, err := postgres.RunMigrations(ctx, db, schema)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"driver":  db.Driver(),
		"applied": len(applied),
	}).Info("Database ready")

	// Buffer definition cache
	definitionCache, closeCache, err := cache.New(ctx, cfg.Cache, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.ErrorWithErr(err, "Failed to close cache")
		}
	}()

	// Services
	constraintService := services.NewConstraintService(
		postgres.NewConstraintRepository(db),
		postgres.NewViolationRepository(db),
		postgres.NewExceptionRepository(db),
		detector.NewDomainFieldRegistry(cfg.TOC.StrictEntityTypes),
		cfg.TOC,
		log.Component("constraints"),
	)
	bufferService := services.NewBufferService(
		postgres.NewBufferRepository(db),
		definitionCache,
		cfg.TOC,
		log.Component("buffers"),
	)
	drumService := services.NewDrumService(postgres.NewDrumRepository(db), log.Component("drums"))

	// HTTP
	val := validator.New()
	handler := router.New(ctx, cfg, log, &router.Handlers{
		Health:     handlers.NewHealthHandler(db, schema, log),
		Constraint: handlers.NewConstraintHandler(constraintService, log, val),
		Violation:  handlers.NewViolationHandler(constraintService, log, val),
		Buffer:     handlers.NewBufferHandler(bufferService, log, val),
		Drum:       handlers.NewDrumHandler(drumService, log, val),
	})

	// Periodic drum analysis
	if cfg.TOC.DrumSchedule != "" {
		scheduler, err := worker.NewDrumScheduler(drumService, cfg.TOC.DrumSchedule, cfg.TOC.OperationTimeout, log)
		if err != nil {
			return err
		}
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"environment": cfg.Server.Environment,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
