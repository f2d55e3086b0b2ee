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

	httpadapter "github.com/kirillkom/docsort/internal/adapters/http"
	mcpadapter "github.com/kirillkom/docsort/internal/adapters/mcp"
	"github.com/kirillkom/docsort/internal/bootstrap"
	"github.com/kirillkom/docsort/internal/config"
	"github.com/kirillkom/docsort/internal/observability/logging"
	"github.com/kirillkom/docsort/internal/observability/metrics"
)

const serviceName = "docsort-api"

func main() {
	if err := run(); err != nil {
		slog.Error("api_exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	pipelineMetrics := metrics.NewPipelineMetrics(serviceName, httpMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, pipelineMetrics)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	app.Pool.Start(ctx)

	opts := httpadapter.Options{Metrics: httpMetrics}
	if cfg.MCPEnabled {
		opts.MCP = mcpadapter.NewServer(app.FileUC, app.FolderUC, app.CommandUC).Handler()
	}
	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Uploader:   app.Uploader,
		Files:      app.FileUC,
		Folders:    app.FolderUC,
		Commands:   app.CommandUC,
		Onboarding: app.Onboarding,
		Users:      app.UserUC,
	}, opts)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("api_listening", "addr", server.Addr, "mcp_enabled", cfg.MCPEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
		defer cancel()
		serverErr := server.Shutdown(shutdownCtx)
		return errors.Join(serverErr, app.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("api_stopped")
	return nil
}
