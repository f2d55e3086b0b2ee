package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

type FileUseCase struct {
	repo       ports.FileRepository
	folders    ports.FolderRepository
	storage    ports.ObjectStorage
	dispatcher ports.ProcessingDispatcher
}

func NewFileUseCase(
	repo ports.FileRepository,
	folders ports.FolderRepository,
	storage ports.ObjectStorage,
	dispatcher ports.ProcessingDispatcher,
) *FileUseCase {
	return &FileUseCase{
		repo:       repo,
		folders:    folders,
		storage:    storage,
		dispatcher: dispatcher,
	}
}

func (uc *FileUseCase) Get(ctx context.Context, userID, fileID string) (*domain.File, error) {
	return uc.repo.GetOwned(ctx, userID, fileID)
}

func (uc *FileUseCase) List(ctx context.Context, userID string, filter domain.FileFilter) ([]domain.File, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list files", fmt.Errorf("unknown status %q", filter.Status))
	}
	return uc.repo.List(ctx, userID, filter)
}

// Update applies a partial edit. Processing fields may be overwritten directly; only the status set is checked.
func (uc *FileUseCase) Update(ctx context.Context, userID, fileID string, patch domain.FilePatch) (*domain.File, error) {
	if patch.Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update file", errors.New("no fields to update"))
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "update file", errors.New("name must not be empty"))
		}
		patch.Name = &name
	}
	if patch.ProcessingStatus != nil && !patch.ProcessingStatus.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update file", fmt.Errorf("unknown status %q", *patch.ProcessingStatus))
	}
	if patch.Tags != nil && *patch.Tags == nil {
		empty := []string{}
		patch.Tags = &empty
	}
	if patch.Metadata != nil && *patch.Metadata == nil {
		empty := map[string]any{}
		patch.Metadata = &empty
	}

	file, err := uc.repo.GetOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if patch.FolderID != nil && *patch.FolderID != nil {
		if _, err := uc.folders.GetOwned(ctx, userID, **patch.FolderID); err != nil {
			return nil, fmt.Errorf("resolve target folder: %w", err)
		}
	}

	patch.Apply(file)
	if err := uc.repo.Update(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// Delete removes the record and then the stored bytes.
func (uc *FileUseCase) Delete(ctx context.Context, userID, fileID string) error {
	file, err := uc.repo.GetOwned(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, userID, fileID); err != nil {
		return err
	}
	if err := uc.storage.Delete(ctx, file.StoragePath); err != nil {
		slog.Warn("storage_delete_failed", "file_id", fileID, "storage_path", file.StoragePath, "error", err)
	}
	return nil
}

// Reprocess puts an existing file back through the pipeline.
func (uc *FileUseCase) Reprocess(ctx context.Context, userID, fileID string, options domain.ProcessingOptions) (*domain.File, error) {
	file, err := uc.repo.GetOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.ProcessingStatus == domain.StatusProcessing {
		return nil, domain.WrapError(domain.ErrConflict, "reprocess file", errors.New("file is already processing"))
	}

	if err := uc.repo.UpdateStatus(ctx, file.ID, domain.StatusProcessing); err != nil {
		return nil, err
	}
	if err := uc.dispatcher.DispatchFile(ctx, file.ID, options); err != nil {
		reason := fmt.Sprintf("dispatch processing: %v", err)
		if markErr := uc.repo.MarkFailed(ctx, file.ID, reason); markErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, markErr)
		}
		return nil, err
	}

	file.ProcessingStatus = domain.StatusProcessing
	return file, nil
}
