package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const (
	stepExtract   = "extract"
	stepSummarize = "summarize"
	stepTag       = "tag"
	stepPersist   = "persist"

	persistTimeout = 15 * time.Second
)

type ProcessFileUseCase struct {
	repo       ports.FileRepository
	extractor  ports.TextExtractor
	summarizer ports.Summarizer
	tagger     ports.Tagger
	metrics    ports.PipelineMetrics
}

func NewProcessFileUseCase(
	repo ports.FileRepository,
	extractor ports.TextExtractor,
	summarizer ports.Summarizer,
	tagger ports.Tagger,
	metrics ports.PipelineMetrics,
) *ProcessFileUseCase {
	if metrics == nil {
		metrics = noopPipelineMetrics{}
	}
	return &ProcessFileUseCase{
		repo:       repo,
		extractor:  extractor,
		summarizer: summarizer,
		tagger:     tagger,
		metrics:    metrics,
	}
}

func (uc *ProcessFileUseCase) ProcessByID(ctx context.Context, fileID string, options domain.ProcessingOptions) error {
	if err := ctx.Err(); err != nil {
		return uc.fail(ctx, fileID, time.Now(), fmt.Errorf("pipeline cancelled before start: %w", err))
	}
	file, err := uc.repo.GetByID(ctx, fileID)
	if err != nil {
		err = fmt.Errorf("fetch file by id: %w", err)
		if domain.IsKind(err, domain.ErrNotFound) {
			return err
		}
		return uc.fail(ctx, fileID, time.Now(), err)
	}
	return uc.ProcessFile(ctx, file, options)
}

// ProcessFile runs extraction, summarization and tagging, then writes the outcome in one update.
// Step failures degrade to empty fields; only a failure of the sequence itself marks the file failed.
func (uc *ProcessFileUseCase) ProcessFile(ctx context.Context, file *domain.File, options domain.ProcessingOptions) error {
	start := time.Now()

	result, err := uc.runSteps(ctx, file, options)
	if err != nil {
		return uc.fail(ctx, file.ID, start, err)
	}

	persistCtx, cancel := detached(ctx)
	defer cancel()
	if err := uc.repo.SaveProcessingResult(persistCtx, file.ID, result); err != nil {
		uc.metrics.StepFailed(stepPersist)
		return uc.fail(ctx, file.ID, start, fmt.Errorf("save processing result: %w", err))
	}

	file.OCRText = result.OCRText
	file.AISummary = result.AISummary
	file.Tags = result.Tags
	file.ProcessingStatus = result.Status

	uc.metrics.FileFinished(domain.StatusCompleted, time.Since(start).Seconds())
	slog.Info("pipeline_completed",
		"file_id", file.ID,
		"text_chars", len(result.OCRText),
		"has_summary", result.AISummary != "",
		"tags", len(result.Tags),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return nil
}

func (uc *ProcessFileUseCase) runSteps(ctx context.Context, file *domain.File, options domain.ProcessingOptions) (result domain.ProcessingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	text := uc.extractText(ctx, file, options)

	source := text
	if source == "" {
		source = file.DisplaySource()
	}

	summary := ""
	if options.GenerateSummary && source != "" {
		summary = uc.summarize(ctx, file, source)
	}

	tags := []string{}
	if options.AutoTag && source != "" {
		tags = uc.tag(ctx, file, source)
	}

	return domain.ProcessingResult{
		OCRText:   text,
		AISummary: summary,
		Tags:      tags,
		Status:    domain.StatusCompleted,
	}, nil
}

func (uc *ProcessFileUseCase) extractText(ctx context.Context, file *domain.File, options domain.ProcessingOptions) string {
	if !options.ExtractText {
		return ""
	}
	if !domain.SupportsTextExtraction(file.MimeType) {
		slog.Debug("pipeline_extract_skipped", "file_id", file.ID, "mime_type", file.MimeType)
		return ""
	}
	text, err := uc.extractor.Extract(ctx, file.StoragePath, file.MimeType)
	if err != nil {
		uc.stepFailed(file.ID, stepExtract, err)
		return ""
	}
	return strings.TrimSpace(text)
}

func (uc *ProcessFileUseCase) summarize(ctx context.Context, file *domain.File, source string) string {
	summary, err := uc.summarizer.Summarize(ctx, source, file.DisplaySource())
	if err != nil {
		uc.stepFailed(file.ID, stepSummarize, err)
		return ""
	}
	return strings.TrimSpace(summary)
}

func (uc *ProcessFileUseCase) tag(ctx context.Context, file *domain.File, source string) []string {
	raw, err := uc.tagger.Tags(ctx, source, file.DisplaySource())
	if err != nil {
		uc.stepFailed(file.ID, stepTag, err)
		return []string{}
	}
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (uc *ProcessFileUseCase) stepFailed(fileID, step string, err error) {
	uc.metrics.StepFailed(step)
	slog.Warn("pipeline_step_failed", "file_id", fileID, "step", step, "error", err)
}

func (uc *ProcessFileUseCase) fail(ctx context.Context, fileID string, start time.Time, processErr error) error {
	uc.metrics.FileFinished(domain.StatusFailed, time.Since(start).Seconds())
	slog.Error("pipeline_failed", "file_id", fileID, "error", processErr)

	failCtx, cancel := detached(ctx)
	defer cancel()
	if failErr := uc.repo.MarkFailed(failCtx, fileID, processErr.Error()); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", processErr, failErr)
	}
	return processErr
}

// detached keeps final status writes alive when the job context has been cancelled.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

type noopPipelineMetrics struct{}

func (noopPipelineMetrics) StepFailed(string)                             {}
func (noopPipelineMetrics) FileFinished(domain.ProcessingStatus, float64) {}
