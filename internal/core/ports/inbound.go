package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docsort/internal/core/domain"
)

// UploadedPart is one file part of a multipart upload.
type UploadedPart struct {
	Filename string
	MimeType string
	Size     int64
	Body     io.Reader
}

// UploadRequest describes one upload call; FolderID may be nil for root level.
type UploadRequest struct {
	UserID   string
	FolderID *string
	Options  domain.ProcessingOptions
	Parts    []UploadedPart
}

// FileUploader is the inbound contract for upload orchestration.
type FileUploader interface {
	Upload(ctx context.Context, req UploadRequest) ([]domain.File, error)
}

// FileProcessor runs the extraction -> summary -> tags pipeline for one file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, file *domain.File, options domain.ProcessingOptions) error
	ProcessByID(ctx context.Context, fileID string, options domain.ProcessingOptions) error
}

// FileService is the inbound contract for file CRUD.
type FileService interface {
	Get(ctx context.Context, userID, fileID string) (*domain.File, error)
	List(ctx context.Context, userID string, filter domain.FileFilter) ([]domain.File, error)
	Update(ctx context.Context, userID, fileID string, patch domain.FilePatch) (*domain.File, error)
	Delete(ctx context.Context, userID, fileID string) error
	Reprocess(ctx context.Context, userID, fileID string, options domain.ProcessingOptions) (*domain.File, error)
}

// FolderService is the inbound contract for folder CRUD and path maintenance.
type FolderService interface {
	Create(ctx context.Context, userID, name string, parentID *string) (*domain.Folder, error)
	List(ctx context.Context, userID string) ([]domain.Folder, error)
	Update(ctx context.Context, userID, folderID string, update domain.FolderUpdate) (*domain.Folder, error)
	Delete(ctx context.Context, userID, folderID string) error
}

// CommandService accepts free-text commands and exposes their classification history.
type CommandService interface {
	Submit(ctx context.Context, userID, command string) (*domain.AICommand, error)
	Get(ctx context.Context, userID, commandID string) (*domain.AICommand, error)
	List(ctx context.Context, userID string, limit int) ([]domain.AICommand, error)
}

// OnboardingService stores the onboarding profile and builds the suggested folder tree.
type OnboardingService interface {
	Onboard(ctx context.Context, userID string, profile domain.OnboardingProfile) ([]domain.Folder, error)
}

// UserService resolves and registers requesters.
type UserService interface {
	Ensure(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*domain.User, error)
}
