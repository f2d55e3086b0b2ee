package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

// PoolDispatcher runs the pipeline in-process on a bounded job runner.
type PoolDispatcher struct {
	runner    ports.JobRunner
	processor ports.FileProcessor
	timeout   time.Duration
}

func NewPoolDispatcher(runner ports.JobRunner, processor ports.FileProcessor, timeout time.Duration) *PoolDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &PoolDispatcher{
		runner:    runner,
		processor: processor,
		timeout:   timeout,
	}
}

func (d *PoolDispatcher) DispatchFile(_ context.Context, fileID string, options domain.ProcessingOptions) error {
	return d.runner.Submit("process_file", func(jobCtx context.Context) error {
		ctx, cancel := context.WithTimeout(jobCtx, d.timeout)
		defer cancel()
		return d.processor.ProcessByID(ctx, fileID, options)
	})
}

// DispatchOrFail hands a file to the dispatcher and records a refused hand-off on the file itself.
// It backs the queue consumer of the standalone worker.
type DispatchOrFail struct {
	dispatcher ports.ProcessingDispatcher
	repo       ports.FileRepository
}

func NewDispatchOrFail(dispatcher ports.ProcessingDispatcher, repo ports.FileRepository) *DispatchOrFail {
	return &DispatchOrFail{dispatcher: dispatcher, repo: repo}
}

func (d *DispatchOrFail) Handle(ctx context.Context, fileID string, options domain.ProcessingOptions) error {
	err := d.dispatcher.DispatchFile(ctx, fileID, options)
	if err == nil {
		return nil
	}
	slog.Warn("pipeline_dispatch_rejected", "file_id", fileID, "error", err)

	failCtx, cancel := detached(ctx)
	defer cancel()
	if markErr := d.repo.MarkFailed(failCtx, fileID, fmt.Sprintf("dispatch processing: %v", err)); markErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", err, markErr)
	}
	return err
}
