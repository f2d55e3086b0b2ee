package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

type UploadFilesUseCase struct {
	repo       ports.FileRepository
	folders    ports.FolderRepository
	storage    ports.ObjectStorage
	dispatcher ports.ProcessingDispatcher
}

func NewUploadFilesUseCase(
	repo ports.FileRepository,
	folders ports.FolderRepository,
	storage ports.ObjectStorage,
	dispatcher ports.ProcessingDispatcher,
) *UploadFilesUseCase {
	return &UploadFilesUseCase{
		repo:       repo,
		folders:    folders,
		storage:    storage,
		dispatcher: dispatcher,
	}
}

// Upload stores every part and creates its record in status processing, then hands the records to
// the pipeline. A part that cannot be stored undoes the parts before it, so a failed request leaves
// nothing behind. It returns as soon as the records exist; processing outcome is observed by
// re-reading the files.
func (uc *UploadFilesUseCase) Upload(ctx context.Context, req ports.UploadRequest) ([]domain.File, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "upload", errors.New("missing user"))
	}
	if len(req.Parts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("no files in request"))
	}
	if req.FolderID != nil {
		if _, err := uc.folders.GetOwned(ctx, req.UserID, *req.FolderID); err != nil {
			return nil, fmt.Errorf("resolve target folder: %w", err)
		}
	}

	stored := make([]*domain.File, 0, len(req.Parts))
	for _, part := range req.Parts {
		file, err := uc.store(ctx, req, part)
		if err != nil {
			uc.rollback(ctx, stored)
			return nil, err
		}
		stored = append(stored, file)
	}

	files := make([]domain.File, 0, len(stored))
	for _, file := range stored {
		uc.dispatch(ctx, file, req.Options)
		files = append(files, *file)
	}
	return files, nil
}

func (uc *UploadFilesUseCase) store(ctx context.Context, req ports.UploadRequest, part ports.UploadedPart) (*domain.File, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", sanitizeFilename(req.UserID), id, sanitizeFilename(part.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, part.Body, part.Size, part.MimeType); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	name := filepath.Base(strings.TrimSpace(part.Filename))
	file := &domain.File{
		ID:               id,
		UserID:           req.UserID,
		FolderID:         req.FolderID,
		Name:             name,
		OriginalName:     name,
		Size:             part.Size,
		MimeType:         part.MimeType,
		StoragePath:      storageKey,
		Tags:             []string{},
		Metadata:         map[string]any{},
		ProcessingStatus: domain.StatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.repo.Create(ctx, file); err != nil {
		uc.deleteObject(ctx, storageKey)
		return nil, fmt.Errorf("create file metadata: %w", err)
	}
	return file, nil
}

// rollback removes records and bytes of parts stored earlier in a request that failed.
func (uc *UploadFilesUseCase) rollback(ctx context.Context, files []*domain.File) {
	cleanupCtx, cancel := detached(ctx)
	defer cancel()
	for _, file := range files {
		if err := uc.repo.Delete(cleanupCtx, file.UserID, file.ID); err != nil {
			slog.Error("upload_rollback_record_failed", "file_id", file.ID, "error", err)
		}
		uc.deleteObject(cleanupCtx, file.StoragePath)
	}
}

func (uc *UploadFilesUseCase) deleteObject(ctx context.Context, key string) {
	cleanupCtx, cancel := detached(ctx)
	defer cancel()
	if err := uc.storage.Delete(cleanupCtx, key); err != nil {
		slog.Error("upload_rollback_object_failed", "storage_key", key, "error", err)
	}
}

// dispatch never fails the upload: a refused hand-off is recorded on the file itself.
func (uc *UploadFilesUseCase) dispatch(ctx context.Context, file *domain.File, options domain.ProcessingOptions) {
	err := uc.dispatcher.DispatchFile(ctx, file.ID, options)
	if err == nil {
		return
	}

	reason := fmt.Sprintf("dispatch processing: %v", err)
	slog.Warn("pipeline_dispatch_rejected", "file_id", file.ID, "error", err)
	if markErr := uc.repo.MarkFailed(ctx, file.ID, reason); markErr != nil {
		slog.Error("pipeline_mark_failed_error", "file_id", file.ID, "error", markErr)
		return
	}
	file.ProcessingStatus = domain.StatusFailed
	file.Metadata[domain.MetadataProcessingError] = reason
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "file.bin"
	}
	return base
}
