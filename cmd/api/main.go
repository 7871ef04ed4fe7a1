package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/loan-decision-engine/internal/adapters/http"
	"github.com/kirillkom/loan-decision-engine/internal/bootstrap"
	"github.com/kirillkom/loan-decision-engine/internal/config"
	"github.com/kirillkom/loan-decision-engine/internal/observability/logging"
	"github.com/kirillkom/loan-decision-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid_config", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		logger.Error("openapi_invalid", "error", err.Error())
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Hooks{})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()
	app.WatchReferences(ctx)

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Applications: app.Applications,
		Documents:    app.Uploads,
		Evaluations:  app.Applications,
		Overrides:    app.Overrides,
		Quotes:       app.Quotes,
		References:   app.References,
	}).WithMetrics(metrics.NewHTTPServerMetrics("api"))

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err.Error())
	}
}
