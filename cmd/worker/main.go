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

	"github.com/kirillkom/loan-decision-engine/internal/bootstrap"
	"github.com/kirillkom/loan-decision-engine/internal/config"
	"github.com/kirillkom/loan-decision-engine/internal/observability/logging"
	"github.com/kirillkom/loan-decision-engine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid_config", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Hooks{
		QueueLag:     workerMetrics.ObserveQueueLag,
		BreakerState: workerMetrics.ObserveBreakerState,
		Pipeline:     workerMetrics,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()
	app.WatchReferences(ctx)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(workerMetrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	pipelineTimeout := time.Duration(cfg.PipelineTimeoutSeconds) * time.Second
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeApplicationEvaluate(ctx, func(handlerCtx context.Context, applicationID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, pipelineTimeout)
		defer cancel()

		started := time.Now()
		workerMetrics.StartApplication()
		err := app.Processor.ProcessByID(processCtx, applicationID)
		workerMetrics.FinishApplication(time.Since(started), err)
		if err == nil {
			logger.Info("application_processed", "application_id", applicationID, "duration_ms", time.Since(started).Milliseconds())
		}
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err.Error())
		os.Exit(1)
	}
}

func metricsMux(handler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
