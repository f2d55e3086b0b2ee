package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docsort/internal/config"
	"github.com/kirillkom/docsort/internal/core/ports"
	"github.com/kirillkom/docsort/internal/core/usecase"
	"github.com/kirillkom/docsort/internal/infrastructure/cache/redis"
	"github.com/kirillkom/docsort/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/docsort/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docsort/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docsort/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docsort/internal/infrastructure/resilience"
	"github.com/kirillkom/docsort/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docsort/internal/infrastructure/storage/minio"
	"github.com/kirillkom/docsort/internal/infrastructure/workpool"
	"github.com/kirillkom/docsort/internal/observability/metrics"
)

// ShutdownTimeout bounds graceful shutdown of both binaries.
const ShutdownTimeout = 15 * time.Second

type App struct {
	Config config.Config

	Pool  *workpool.Pool
	Queue *nats.Queue
	Files ports.FileRepository

	Uploader   *usecase.UploadFilesUseCase
	FileUC     *usecase.FileUseCase
	FolderUC   *usecase.FolderUseCase
	CommandUC  *usecase.CommandUseCase
	Onboarding *usecase.OnboardingUseCase
	UserUC     *usecase.UserUseCase
	ProcessUC  *usecase.ProcessFileUseCase

	// LocalDispatch runs the pipeline on Pool regardless of PIPELINE_DISPATCH; the worker feeds it from NATS.
	LocalDispatch *usecase.PoolDispatcher

	closers []func() error
}

// New wires every adapter behind the use cases. The returned pool is not started.
func New(ctx context.Context, cfg config.Config, pm *metrics.PipelineMetrics) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, db.Close)
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithStateObserver(pm.BreakerTransition)

	storage, err := newStorage(ctx, cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	llm := ollama.New(ollama.Config{
		BaseURL:     cfg.OllamaURL,
		Model:       cfg.OllamaGenModel,
		VisionModel: cfg.OllamaVisionModel,
		Timeout:     cfg.OllamaTimeout,
		Executor:    executor,
	})
	var summarizer ports.Summarizer = ollama.NewSummarizer(llm)
	var tagger ports.Tagger = ollama.NewTagger(llm)
	if cfg.RedisAddr != "" {
		cache, err := redis.New(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, fmt.Errorf("init llm cache: %w", err)
		}
		app.closers = append(app.closers, cache.Close)
		summarizer = redis.NewSummarizer(summarizer, cache, cfg.LLMCacheTTL, llm.Model(), pm.CacheLookup)
		tagger = redis.NewTagger(tagger, cache, cfg.LLMCacheTTL, llm.Model(), pm.CacheLookup)
		slog.Info("llm_cache_enabled", "addr", cfg.RedisAddr, "ttl", cfg.LLMCacheTTL.String())
	}

	app.Pool = workpool.New(workpool.Config{
		Name:      "pipeline",
		Workers:   cfg.PipelineWorkers,
		QueueSize: cfg.PipelineQueueSize,
	}, pm)

	fileRepo := postgres.NewFileRepository(db)
	folderRepo := postgres.NewFolderRepository(db)
	commandRepo := postgres.NewCommandRepository(db)
	userRepo := postgres.NewUserRepository(db)
	app.Files = fileRepo

	extractor := ocr.NewExtractor(storage, ollama.NewVisionOCR(llm), 0)
	app.ProcessUC = usecase.NewProcessFileUseCase(fileRepo, extractor, summarizer, tagger, pm)
	app.LocalDispatch = usecase.NewPoolDispatcher(app.Pool, app.ProcessUC, cfg.PipelineJobTimeout)

	dispatcher, err := app.newDispatcher(cfg, executor)
	if err != nil {
		return nil, err
	}

	app.Uploader = usecase.NewUploadFilesUseCase(fileRepo, folderRepo, storage, dispatcher)
	app.FileUC = usecase.NewFileUseCase(fileRepo, folderRepo, storage, dispatcher)
	app.FolderUC = usecase.NewFolderUseCase(folderRepo, fileRepo)
	app.CommandUC = usecase.NewCommandUseCase(commandRepo, ollama.NewCommandInterpreter(llm), app.Pool, cfg.PipelineJobTimeout)
	app.Onboarding = usecase.NewOnboardingUseCase(userRepo, ollama.NewFolderPlanner(llm), app.FolderUC)
	app.UserUC = usecase.NewUserUseCase(userRepo)

	slog.Info("bootstrap_ready",
		"storage_backend", cfg.StorageBackend,
		"pipeline_dispatch", cfg.PipelineDispatch,
		"pipeline_workers", cfg.PipelineWorkers,
		"pipeline_queue_size", cfg.PipelineQueueSize,
	)
	return app, nil
}

func (a *App) newDispatcher(cfg config.Config, executor *resilience.Executor) (ports.ProcessingDispatcher, error) {
	if cfg.PipelineDispatch != config.DispatchNATS {
		return a.LocalDispatch, nil
	}
	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	a.Queue = queue
	a.closers = append(a.closers, func() error {
		queue.Close()
		return nil
	})
	return queue, nil
}

func newStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	if cfg.StorageBackend == config.StorageMinio {
		return minio.New(ctx, minio.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Executor:  executor,
		})
	}
	return localfs.New(cfg.StoragePath)
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	rc.RetryMultiplier = cfg.ResilienceRetryMultiplier
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return rc
}

// Shutdown drains the pool, then releases connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		if err := a.Pool.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop pool: %w", err))
		}
	}
	a.Close()
	return errors.Join(errs...)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, sql.ErrConnDone) {
			slog.Warn("bootstrap_close_failed", "error", err)
		}
	}
	a.closers = nil
}
