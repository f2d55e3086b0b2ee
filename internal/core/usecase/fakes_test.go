package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/docsort/internal/core/domain"
)

type fileRepoFake struct {
	mu           sync.Mutex
	files        map[string]*domain.File
	getErr       error
	createErr    error
	saveErr      error
	failErr      error
	saveCalls    int
	failReasons  []string
	statusWrites []domain.ProcessingStatus
}

func newFileRepoFake(files ...*domain.File) *fileRepoFake {
	repo := &fileRepoFake{files: map[string]*domain.File{}}
	for _, f := range files {
		repo.files[f.ID] = f
	}
	return repo
}

func (f *fileRepoFake) Create(_ context.Context, file *domain.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyFile := *file
	f.files[file.ID] = &copyFile
	return nil
}

func (f *fileRepoFake) GetByID(_ context.Context, id string) (*domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	file, ok := f.files[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get file", fmt.Errorf("id=%s", id))
	}
	copyFile := *file
	return &copyFile, nil
}

func (f *fileRepoFake) GetOwned(ctx context.Context, userID, id string) (*domain.File, error) {
	file, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get file", fmt.Errorf("id=%s", id))
	}
	return file, nil
}

func (f *fileRepoFake) List(_ context.Context, userID string, filter domain.FileFilter) ([]domain.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.File{}
	for _, file := range f.files {
		if file.UserID != userID {
			continue
		}
		if filter.FolderID != "" && (file.FolderID == nil || *file.FolderID != filter.FolderID) {
			continue
		}
		out = append(out, *file)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fileRepoFake) Update(_ context.Context, file *domain.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyFile := *file
	f.files[file.ID] = &copyFile
	return nil
}

func (f *fileRepoFake) UpdateStatus(_ context.Context, id string, status domain.ProcessingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusWrites = append(f.statusWrites, status)
	if file, ok := f.files[id]; ok {
		file.ProcessingStatus = status
	}
	return nil
}

func (f *fileRepoFake) MarkFailed(_ context.Context, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReasons = append(f.failReasons, reason)
	f.statusWrites = append(f.statusWrites, domain.StatusFailed)
	if f.failErr != nil {
		return f.failErr
	}
	if file, ok := f.files[id]; ok {
		file.ProcessingStatus = domain.StatusFailed
		if file.Metadata == nil {
			file.Metadata = map[string]any{}
		}
		file.Metadata[domain.MetadataProcessingError] = reason
	}
	return nil
}

func (f *fileRepoFake) SaveProcessingResult(_ context.Context, id string, result domain.ProcessingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	f.statusWrites = append(f.statusWrites, result.Status)
	if f.saveErr != nil {
		return f.saveErr
	}
	if file, ok := f.files[id]; ok {
		file.OCRText = result.OCRText
		file.AISummary = result.AISummary
		file.Tags = append([]string{}, result.Tags...)
		file.ProcessingStatus = result.Status
	}
	return nil
}

func (f *fileRepoFake) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok || file.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "delete file", fmt.Errorf("id=%s", id))
	}
	delete(f.files, id)
	return nil
}

func (f *fileRepoFake) CountInFolder(_ context.Context, folderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, file := range f.files {
		if file.FolderID != nil && *file.FolderID == folderID {
			n++
		}
	}
	return n, nil
}

func (f *fileRepoFake) get(id string) *domain.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return nil
	}
	copyFile := *file
	return &copyFile
}

type folderRepoFake struct {
	mu      sync.Mutex
	folders map[string]*domain.Folder
	order   []string
}

func newFolderRepoFake() *folderRepoFake {
	return &folderRepoFake{folders: map[string]*domain.Folder{}}
}

func (f *folderRepoFake) Create(_ context.Context, folder *domain.Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyFolder := *folder
	f.folders[folder.ID] = &copyFolder
	f.order = append(f.order, folder.ID)
	return nil
}

func (f *folderRepoFake) GetOwned(_ context.Context, userID, id string) (*domain.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[id]
	if !ok || folder.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get folder", fmt.Errorf("id=%s", id))
	}
	copyFolder := *folder
	return &copyFolder, nil
}

func (f *folderRepoFake) List(_ context.Context, userID string) ([]domain.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Folder{}
	for _, id := range f.order {
		if folder, ok := f.folders[id]; ok && folder.UserID == userID {
			out = append(out, *folder)
		}
	}
	return out, nil
}

func (f *folderRepoFake) Update(_ context.Context, folder *domain.Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyFolder := *folder
	f.folders[folder.ID] = &copyFolder
	return nil
}

func (f *folderRepoFake) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[id]
	if !ok || folder.UserID != userID {
		return domain.WrapError(domain.ErrNotFound, "delete folder", fmt.Errorf("id=%s", id))
	}
	delete(f.folders, id)
	return nil
}

func (f *folderRepoFake) CountChildren(_ context.Context, folderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, folder := range f.folders {
		if folder.ParentID != nil && *folder.ParentID == folderID {
			n++
		}
	}
	return n, nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string]string
	saveErr error
	// failAtSave makes the n-th Save (1-based) fail with saveErr; zero fails every Save.
	failAtSave int
	saves      int
	deleted    []string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string]string{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	f.saves++
	failing := f.saveErr != nil && (f.failAtSave == 0 || f.failAtSave == f.saves)
	f.mu.Unlock()
	if failing {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type extractorFake struct {
	text  string
	err   error
	calls int
}

func (f *extractorFake) Extract(context.Context, string, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type summarizerFake struct {
	summary string
	err     error
	inputs  []string
}

func (f *summarizerFake) Summarize(_ context.Context, text, _ string) (string, error) {
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return "", f.err
	}
	if f.summary != "" {
		return f.summary, nil
	}
	return "summary of " + text, nil
}

type taggerFake struct {
	tags   []string
	err    error
	inputs []string
}

func (f *taggerFake) Tags(_ context.Context, text, _ string) ([]string, error) {
	f.inputs = append(f.inputs, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

type dispatcherFake struct {
	mu         sync.Mutex
	dispatched []string
	options    []domain.ProcessingOptions
	err        error
}

func (f *dispatcherFake) DispatchFile(_ context.Context, fileID string, options domain.ProcessingOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, fileID)
	f.options = append(f.options, options)
	return nil
}

// runnerFake runs jobs inline so background work is observable right after Submit returns.
type runnerFake struct {
	err   error
	names []string
}

func (f *runnerFake) Submit(name string, job func(context.Context) error) error {
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, name)
	return job(context.Background())
}

type metricsFake struct {
	mu       sync.Mutex
	steps    []string
	finished []domain.ProcessingStatus
}

func (f *metricsFake) StepFailed(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
}

func (f *metricsFake) FileFinished(status domain.ProcessingStatus, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, status)
}

func strPtr(s string) *string { return &s }

func containsAll(haystack string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}
