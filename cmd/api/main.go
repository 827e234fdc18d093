package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gmsf/gmsf-contracts-backend/internal/cache"
	"github.com/gmsf/gmsf-contracts-backend/internal/config"
	"github.com/gmsf/gmsf-contracts-backend/internal/database"
	"github.com/gmsf/gmsf-contracts-backend/internal/handlers"
	"github.com/gmsf/gmsf-contracts-backend/internal/lifecycle"
	"github.com/gmsf/gmsf-contracts-backend/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	// Connect to Redis
	redisClient, err := cache.NewRedis(cfg.RedisAddr)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	service := lifecycle.NewService(db)
	router := handlers.NewRouter(db, redisClient, service, cfg.JWTSecret)

	sched, err := scheduler.New(service, logger, cfg.SweepSchedule)
	if err != nil {
		logger.Error("failed to set up scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()
	logger.Info("client status sweep scheduled", "spec", cfg.SweepSchedule)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	<-sched.Stop().Done()

	logger.Info("server stopped")
}
