package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docsort/internal/bootstrap"
	"github.com/kirillkom/docsort/internal/config"
	"github.com/kirillkom/docsort/internal/core/usecase"
	"github.com/kirillkom/docsort/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docsort/internal/observability/logging"
	"github.com/kirillkom/docsort/internal/observability/metrics"
)

const serviceName = "docsort-worker"

func main() {
	if err := run(); err != nil {
		slog.Error("worker_exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	if cfg.PipelineDispatch != config.DispatchNATS {
		return fmt.Errorf("worker needs PIPELINE_DISPATCH=%s, got %q", config.DispatchNATS, cfg.PipelineDispatch)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipelineMetrics := metrics.NewPipelineMetrics(serviceName, nil)
	app, err := bootstrap.New(ctx, cfg, pipelineMetrics)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	app.Pool.Start(ctx)

	// A full local pool fails the file instead of leaving it in processing.
	handoff := usecase.NewDispatchOrFail(app.LocalDispatch, app.Files)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", pipelineMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Queue.SubscribeFileJobs(gctx, func(jobCtx context.Context, job nats.FileJob) error {
			return handoff.Handle(jobCtx, job.FileID, job.Options)
		})
	})
	g.Go(func() error {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	waitErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
	defer cancel()
	if err := errors.Join(waitErr, app.Shutdown(shutdownCtx)); err != nil {
		return err
	}
	slog.Info("worker_stopped")
	return nil
}
