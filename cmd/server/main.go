package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-compare/internal/adapter/httpapi"
	"agent-compare/internal/di"
	"agent-compare/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()
	cfg := di.LoadConfig(envService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer container.Close()

	handler := httpapi.NewHandler(container.Comparer, container.KeyValidator, container.Logger.Named("http"), httpapi.PageData{
		Model:         cfg.OpenAIModel,
		MaxIterations: cfg.AgentMaxIterations,
	})
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		ServiceName:    "agent-compare",
		RequestTimeout: cfg.RequestTimeout,
		AccessLog:      true,
		JSONLogs:       !cfg.LogDevelopment,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		container.Logger.Info("Server listening", "addr", cfg.HTTPAddr, "model", cfg.OpenAIModel)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			container.Logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		container.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			container.Logger.Error("Shutdown failed", "error", err)
		}
	}
}
