package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/loan-decision-engine/internal/config"
	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
	"github.com/kirillkom/loan-decision-engine/internal/core/usecase"
	"github.com/kirillkom/loan-decision-engine/internal/core/verify"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor/remote"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/references/yamlstore"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/storage/localfs"
)

const referenceWatchDebounce = 500 * time.Millisecond

// Hooks lets a process attach its metrics before any collaborator runs.
type Hooks struct {
	QueueLag     func(time.Duration)
	BreakerState resilience.StateObserver
	Pipeline     ports.PipelineObserver
}

type App struct {
	Config config.Config

	Queue      *nats.Queue
	References *yamlstore.Store

	Applications *usecase.ApplicationUseCase
	Uploads      *usecase.UploadDocumentUseCase
	Overrides    *usecase.OverrideDecisionUseCase
	Quotes       *usecase.RiskQuoteUseCase
	Processor    *usecase.ProcessApplicationUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, hooks Hooks) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	apps := postgres.NewApplicationRepository(db)
	docs := postgres.NewDocumentRepository(db)
	audit := postgres.NewAuditRepository(db)
	results := postgres.NewVerificationRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	if hooks.BreakerState != nil {
		executor.OnStateChange(hooks.BreakerState)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		MaxRedeliveries:    cfg.NATSMaxRedeliveries,
		RedeliveryDelay:    time.Duration(cfg.NATSRedeliveryDelaySeconds) * time.Second,
		LagObserver:        hooks.QueueLag,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	references, err := yamlstore.Open(ctx, cfg.ReferenceStorePath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init reference store: %w", err)
	}

	verifier := verify.NewDocumentVerifier(verify.Options{
		SimilarityThreshold:    cfg.SimilarityThreshold,
		MissingReferencePolicy: domain.MissingReferencePolicy(cfg.OnMissingReference),
		Fields:                 verify.NewFieldValidator(cfg.NameSimilarityThreshold, cfg.SalaryTolerancePercent),
	})

	processor := usecase.NewProcessApplicationUseCase(
		apps,
		docs,
		results,
		storage,
		newExtractor(cfg, executor),
		references,
		newExplainer(cfg, executor),
		verifier,
		usecase.ProcessOptions{
			Concurrency:     cfg.VerifyConcurrency,
			DocumentTimeout: time.Duration(cfg.VerifyDocumentTimeoutSeconds) * time.Second,
		},
	)
	if hooks.Pipeline != nil {
		processor.WithObserver(hooks.Pipeline)
	}

	return &App{
		Config:     cfg,
		Queue:      queue,
		References: references,

		Applications: usecase.NewApplicationUseCase(apps, docs, audit, storage, queue),
		Uploads:      usecase.NewUploadDocumentUseCase(apps, docs, storage, cfg.UploadMaxBytes),
		Overrides:    usecase.NewOverrideDecisionUseCase(apps),
		Quotes:       usecase.NewRiskQuoteUseCase(),
		Processor:    processor,

		closeFn: closeAll(queue, db),
	}, nil
}

// WatchReferences reloads the whitelist file on change until ctx ends. It is
// a no-op when watching is disabled or no file is configured.
func (a *App) WatchReferences(ctx context.Context) {
	if !a.Config.ReferenceWatchEnabled || a.Config.ReferenceStorePath == "" {
		return
	}
	go func() {
		if err := a.References.Watch(ctx, referenceWatchDebounce); err != nil {
			slog.Error("reference_watch_stopped", "path", a.Config.ReferenceStorePath, "error", err.Error())
		}
	}()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeAll(queue *nats.Queue, db *sql.DB) func() {
	return func() {
		queue.Close()
		_ = db.Close()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:     cfg.RetryMultiplier,
		// A failed explanation falls back to the template text.
		RetryOverrides: map[string]resilience.RetryPolicy{
			"ollama.": {MaxAttempts: 1},
		},

		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}

// newExtractor routes text-bearing formats to local parsers. Scans and images
// go to the remote OCR service; without OCR_URL they are marked failed.
func newExtractor(cfg config.Config, executor *resilience.Executor) ports.FieldExtractor {
	var fallback ports.FieldExtractor
	if cfg.OCRURL != "" {
		fallback = remote.New(cfg.OCRURL, time.Duration(cfg.OCRTimeoutSeconds)*time.Second, executor)
	}
	return extractor.NewChain(fallback).
		Route(pdftext.NewExtractor(), "application/pdf").
		Route(spreadsheet.NewExtractor(),
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/vnd.ms-excel.sheet.macroenabled.12",
			"application/zip",
		).
		Route(plaintext.NewExtractor(), "text/")
}

func newExplainer(cfg config.Config, executor *resilience.Executor) ports.ExplanationGenerator {
	if !cfg.ExplanationEnabled || cfg.OllamaURL == "" {
		return nil
	}
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.WithExecutor(executor))
	return ollama.NewExplainer(client)
}
