// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/microsservicos/events-service/internal/config"
	"github.com/microsservicos/events-service/internal/handler"
	"github.com/microsservicos/events-service/internal/lib/logger/sl"
	"github.com/microsservicos/events-service/internal/service"
	"github.com/microsservicos/events-service/internal/storage"
	"github.com/microsservicos/events-service/internal/storage/memory"
	"github.com/microsservicos/events-service/internal/storage/postgres"
	"github.com/microsservicos/events-service/internal/userclient"
)

const (
	envLocal = "local"
	envProd  = "production"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	log.Info("starting events service", slog.String("env", cfg.Env), slog.String("storage", cfg.StorageDriver))

	events, registrations, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("storage init failed", sl.Err(err))
		os.Exit(1)
	}
	defer cleanup()

	users := userclient.New(cfg.UserServiceURL)
	eventSvc := service.NewEventService(events, registrations)
	regSvc := service.NewRegistrationService(events, registrations, users)

	auth := handler.NewAuth(cfg.JWTSecret)
	router := handler.NewRouter(
		handler.NewEventHandler(eventSvc, log),
		handler.NewRegistrationHandler(regSvc, log),
		auth,
		log,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for the shutdown signal.
	go func() {
		log.Info("server listening", slog.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", sl.Err(err))
			os.Exit(1)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sign := <-quit

	log.Info("shutting down", slog.String("signal", sign.String()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStores selects the storage backend. The memory driver serves local
// runs without a database; postgres is the default.
func buildStores(ctx context.Context, cfg config.Config) (storage.EventStore, storage.RegistrationStore, func(), error) {
	if cfg.StorageDriver == "memory" {
		events, registrations := memory.New()
		return events, registrations, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, nil, err
	}
	return postgres.NewEventStore(pool), postgres.NewRegistrationStore(pool), pool.Close, nil
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
