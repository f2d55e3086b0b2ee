package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docsort/internal/core/domain"
)

// FileRepository persists uploaded file records. All user-facing reads are scoped by owner.
type FileRepository interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, id string) (*domain.File, error)
	GetOwned(ctx context.Context, userID, id string) (*domain.File, error)
	List(ctx context.Context, userID string, filter domain.FileFilter) ([]domain.File, error)
	Update(ctx context.Context, file *domain.File) error
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus) error
	MarkFailed(ctx context.Context, id string, reason string) error
	SaveProcessingResult(ctx context.Context, id string, result domain.ProcessingResult) error
	Delete(ctx context.Context, userID, id string) error
	CountInFolder(ctx context.Context, folderID string) (int, error)
}

// FolderRepository persists the adjacency-list folder tree.
type FolderRepository interface {
	Create(ctx context.Context, folder *domain.Folder) error
	GetOwned(ctx context.Context, userID, id string) (*domain.Folder, error)
	List(ctx context.Context, userID string) ([]domain.Folder, error)
	Update(ctx context.Context, folder *domain.Folder) error
	Delete(ctx context.Context, userID, id string) error
	CountChildren(ctx context.Context, folderID string) (int, error)
}

// CommandRepository persists AI command records.
type CommandRepository interface {
	Create(ctx context.Context, cmd *domain.AICommand) error
	GetOwned(ctx context.Context, userID, id string) (*domain.AICommand, error)
	List(ctx context.Context, userID string, limit int) ([]domain.AICommand, error)
	Complete(ctx context.Context, id string, result domain.CommandResult) error
	Fail(ctx context.Context, id string, errMessage string) error
}

// UserRepository persists users and their onboarding profile.
type UserRepository interface {
	Ensure(ctx context.Context, userID string) error
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	SaveProfile(ctx context.Context, userID string, profile domain.OnboardingProfile) error
}

// ObjectStorage stores uploaded bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// TextExtractor extracts plain text (OCR) from a stored file.
type TextExtractor interface {
	Extract(ctx context.Context, storagePath, mimeType string) (string, error)
}

// Summarizer produces a short summary of text belonging to a named file.
type Summarizer interface {
	Summarize(ctx context.Context, text, fileName string) (string, error)
}

// Tagger produces a small set of category tags for text belonging to a named file.
type Tagger interface {
	Tags(ctx context.Context, text, fileName string) ([]string, error)
}

// CommandInterpreter classifies a free-text command into the fixed action vocabulary.
type CommandInterpreter interface {
	InterpretCommand(ctx context.Context, command string) (domain.CommandResult, error)
}

// FolderPlanner proposes an initial folder structure for a user profile.
type FolderPlanner interface {
	PlanFolders(ctx context.Context, profile domain.OnboardingProfile) ([]domain.FolderPlanEntry, error)
}

// ProcessingDispatcher hands a freshly created file over to the pipeline without waiting for it.
type ProcessingDispatcher interface {
	DispatchFile(ctx context.Context, fileID string, options domain.ProcessingOptions) error
}

// JobRunner runs background work on a bounded pool. Submit fails with domain.ErrQueueFull when saturated.
type JobRunner interface {
	Submit(name string, job func(context.Context) error) error
}

// PipelineMetrics observes pipeline runs.
type PipelineMetrics interface {
	StepFailed(step string)
	FileFinished(status domain.ProcessingStatus, seconds float64)
}
