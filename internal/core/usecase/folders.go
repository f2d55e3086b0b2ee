package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const (
	maxFolderNameLen = 255
	maxFolderDepth   = 256
)

type FolderUseCase struct {
	repo  ports.FolderRepository
	files ports.FileRepository
}

func NewFolderUseCase(repo ports.FolderRepository, files ports.FileRepository) *FolderUseCase {
	return &FolderUseCase{repo: repo, files: files}
}

func (uc *FolderUseCase) Create(ctx context.Context, userID, name string, parentID *string) (*domain.Folder, error) {
	name, err := validateFolderName(name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create folder", err)
	}

	parent, err := uc.loadParent(ctx, userID, parentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	folder := &domain.Folder{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		ParentID:  parentID,
		Path:      domain.FolderPath(parent, name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return folder, nil
}

func (uc *FolderUseCase) List(ctx context.Context, userID string) ([]domain.Folder, error) {
	return uc.repo.List(ctx, userID)
}

// Update renames and/or re-parents a folder and recomputes its own path.
// Descendant paths are not rewritten and may go stale after an ancestor changes.
func (uc *FolderUseCase) Update(ctx context.Context, userID, folderID string, update domain.FolderUpdate) (*domain.Folder, error) {
	if update.Name == nil && !update.SetParent {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update folder", errors.New("no fields to update"))
	}

	folder, err := uc.repo.GetOwned(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name, err := validateFolderName(*update.Name)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "update folder", err)
		}
		folder.Name = name
	}
	if update.SetParent {
		if update.ParentID != nil {
			if err := uc.checkNotDescendant(ctx, userID, folder.ID, *update.ParentID); err != nil {
				return nil, err
			}
		}
		folder.ParentID = update.ParentID
	}

	parent, err := uc.loadParent(ctx, userID, folder.ParentID)
	if err != nil {
		return nil, err
	}
	folder.Path = domain.FolderPath(parent, folder.Name)
	folder.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, folder); err != nil {
		return nil, fmt.Errorf("update folder: %w", err)
	}
	return folder, nil
}

// checkNotDescendant walks parent references from parentID up to the root and rejects a move that
// would place the folder under itself. Stored paths may be stale, so ids are followed instead.
func (uc *FolderUseCase) checkNotDescendant(ctx context.Context, userID, folderID, parentID string) error {
	current := parentID
	for depth := 0; depth < maxFolderDepth; depth++ {
		if current == folderID {
			return domain.WrapError(domain.ErrInvalidInput, "update folder", errors.New("folder cannot be moved under itself"))
		}
		ancestor, err := uc.repo.GetOwned(ctx, userID, current)
		if err != nil {
			return err
		}
		if ancestor.ParentID == nil {
			return nil
		}
		current = *ancestor.ParentID
	}
	return domain.WrapError(domain.ErrInvalidInput, "update folder", fmt.Errorf("folder tree deeper than %d levels", maxFolderDepth))
}

// Delete refuses while any file or subfolder still references the folder.
func (uc *FolderUseCase) Delete(ctx context.Context, userID, folderID string) error {
	if _, err := uc.repo.GetOwned(ctx, userID, folderID); err != nil {
		return err
	}

	fileCount, err := uc.files.CountInFolder(ctx, folderID)
	if err != nil {
		return fmt.Errorf("count folder files: %w", err)
	}
	childCount, err := uc.repo.CountChildren(ctx, folderID)
	if err != nil {
		return fmt.Errorf("count subfolders: %w", err)
	}
	if fileCount > 0 || childCount > 0 {
		return domain.WrapError(
			domain.ErrConflict,
			"delete folder",
			fmt.Errorf("folder is not empty: %d files, %d subfolders", fileCount, childCount),
		)
	}

	return uc.repo.Delete(ctx, userID, folderID)
}

func (uc *FolderUseCase) loadParent(ctx context.Context, userID string, parentID *string) (*domain.Folder, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := uc.repo.GetOwned(ctx, userID, *parentID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent folder: %w", err)
	}
	return parent, nil
}

func validateFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", errors.New("folder name must not be empty")
	case strings.Contains(name, domain.PathSeparator):
		return "", fmt.Errorf("folder name must not contain %q", domain.PathSeparator)
	case len(name) > maxFolderNameLen:
		return "", fmt.Errorf("folder name longer than %d bytes", maxFolderNameLen)
	}
	return name, nil
}
