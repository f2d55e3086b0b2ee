package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kirillkom/docsort/internal/config"
	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

type uploaderFake struct {
	mu       sync.Mutex
	requests []ports.UploadRequest
	bodies   []string
	err      error
}

func (f *uploaderFake) Upload(_ context.Context, req ports.UploadRequest) ([]domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)

	now := time.Now().UTC()
	files := make([]domain.File, 0, len(req.Parts))
	for i, part := range req.Parts {
		raw, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, err
		}
		f.bodies = append(f.bodies, string(raw))
		files = append(files, domain.File{
			ID:               "file-" + string(rune('a'+i)),
			UserID:           req.UserID,
			FolderID:         req.FolderID,
			Name:             part.Filename,
			OriginalName:     part.Filename,
			Size:             part.Size,
			MimeType:         part.MimeType,
			Tags:             []string{},
			Metadata:         map[string]any{},
			ProcessingStatus: domain.StatusProcessing,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return files, nil
}

type fileServiceFake struct {
	files       map[string]*domain.File
	lastFilter  domain.FileFilter
	lastPatch   domain.FilePatch
	lastOptions domain.ProcessingOptions
	err         error
}

func newFileServiceFake(files ...*domain.File) *fileServiceFake {
	f := &fileServiceFake{files: map[string]*domain.File{}}
	for _, file := range files {
		f.files[file.ID] = file
	}
	return f
}

func (f *fileServiceFake) owned(userID, fileID string) (*domain.File, error) {
	file, ok := f.files[fileID]
	if !ok || file.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get file", errors.New(fileID))
	}
	return file, nil
}

func (f *fileServiceFake) Get(_ context.Context, userID, fileID string) (*domain.File, error) {
	return f.owned(userID, fileID)
}

func (f *fileServiceFake) List(_ context.Context, userID string, filter domain.FileFilter) ([]domain.File, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.File{}
	for _, file := range f.files {
		if file.UserID == userID {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (f *fileServiceFake) Update(_ context.Context, userID, fileID string, patch domain.FilePatch) (*domain.File, error) {
	f.lastPatch = patch
	file, err := f.owned(userID, fileID)
	if err != nil {
		return nil, err
	}
	patch.Apply(file)
	return file, nil
}

func (f *fileServiceFake) Delete(_ context.Context, userID, fileID string) error {
	if _, err := f.owned(userID, fileID); err != nil {
		return err
	}
	delete(f.files, fileID)
	return nil
}

func (f *fileServiceFake) Reprocess(_ context.Context, userID, fileID string, options domain.ProcessingOptions) (*domain.File, error) {
	f.lastOptions = options
	if f.err != nil {
		return nil, f.err
	}
	file, err := f.owned(userID, fileID)
	if err != nil {
		return nil, err
	}
	file.ProcessingStatus = domain.StatusProcessing
	return file, nil
}

type folderServiceFake struct {
	lastParent *string
	lastUpdate domain.FolderUpdate
	deleteErr  error
}

func (f *folderServiceFake) Create(_ context.Context, userID, name string, parentID *string) (*domain.Folder, error) {
	f.lastParent = parentID
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create folder", errors.New("empty name"))
	}
	return &domain.Folder{ID: "d1", UserID: userID, Name: name, ParentID: parentID, Path: name}, nil
}

func (f *folderServiceFake) List(_ context.Context, userID string) ([]domain.Folder, error) {
	return []domain.Folder{{ID: "d1", UserID: userID, Name: "Contracts", Path: "Contracts"}}, nil
}

func (f *folderServiceFake) Update(_ context.Context, userID, folderID string, update domain.FolderUpdate) (*domain.Folder, error) {
	f.lastUpdate = update
	return &domain.Folder{ID: folderID, UserID: userID, Name: "Renamed", ParentID: update.ParentID, Path: "Renamed"}, nil
}

func (f *folderServiceFake) Delete(context.Context, string, string) error {
	return f.deleteErr
}

type commandServiceFake struct {
	lastLimit int
	submitErr error
}

func (f *commandServiceFake) Submit(_ context.Context, userID, command string) (*domain.AICommand, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.AICommand{ID: "c1", UserID: userID, Command: command, Status: domain.CommandProcessing}, nil
}

func (f *commandServiceFake) Get(_ context.Context, userID, commandID string) (*domain.AICommand, error) {
	if commandID != "c1" {
		return nil, domain.WrapError(domain.ErrNotFound, "get command", errors.New(commandID))
	}
	return &domain.AICommand{ID: "c1", UserID: userID, Status: domain.CommandCompleted}, nil
}

func (f *commandServiceFake) List(_ context.Context, _ string, limit int) ([]domain.AICommand, error) {
	f.lastLimit = limit
	return []domain.AICommand{}, nil
}

type onboardingFake struct {
	profile domain.OnboardingProfile
	err     error
}

func (f *onboardingFake) Onboard(_ context.Context, userID string, profile domain.OnboardingProfile) ([]domain.Folder, error) {
	f.profile = profile
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Folder{{ID: "d1", UserID: userID, Name: "Clients", Path: "Clients"}}, nil
}

type userServiceFake struct {
	mu      sync.Mutex
	ensured []string
	err     error
}

func (f *userServiceFake) Ensure(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, userID)
	return f.err
}

func (f *userServiceFake) Get(_ context.Context, userID string) (*domain.User, error) {
	return &domain.User{ID: userID, Industry: "Legal"}, nil
}

type routerFixture struct {
	uploader   *uploaderFake
	files      *fileServiceFake
	folders    *folderServiceFake
	commands   *commandServiceFake
	onboarding *onboardingFake
	users      *userServiceFake
}

func newRouterFixture(files ...*domain.File) *routerFixture {
	return &routerFixture{
		uploader:   &uploaderFake{},
		files:      newFileServiceFake(files...),
		folders:    &folderServiceFake{},
		commands:   &commandServiceFake{},
		onboarding: &onboardingFake{},
		users:      &userServiceFake{},
	}
}

func (f *routerFixture) services() Services {
	return Services{
		Uploader:   f.uploader,
		Files:      f.files,
		Folders:    f.folders,
		Commands:   f.commands,
		Onboarding: f.onboarding,
		Users:      f.users,
	}
}

func (f *routerFixture) handler(cfg config.Config, opts Options) http.Handler {
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 1
	}
	if cfg.CommandHistorySize == 0 {
		cfg.CommandHistorySize = 50
	}
	return NewRouter(cfg, f.services(), opts).Handler()
}
