package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/docsort/internal/core/domain"
)

type filesFake struct {
	lastFilter domain.FileFilter
	files      map[string]*domain.File
	listErr    error
}

func (f *filesFake) Get(_ context.Context, userID, fileID string) (*domain.File, error) {
	file, ok := f.files[fileID]
	if !ok || file.UserID != userID {
		return nil, domain.WrapError(domain.ErrNotFound, "get file", errors.New(fileID))
	}
	return file, nil
}

func (f *filesFake) List(_ context.Context, userID string, filter domain.FileFilter) ([]domain.File, error) {
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []domain.File{}
	for _, file := range f.files {
		if file.UserID == userID {
			out = append(out, *file)
		}
	}
	return out, nil
}

func (f *filesFake) Update(context.Context, string, string, domain.FilePatch) (*domain.File, error) {
	return nil, errors.New("not used")
}

func (f *filesFake) Delete(context.Context, string, string) error { return errors.New("not used") }

func (f *filesFake) Reprocess(context.Context, string, string, domain.ProcessingOptions) (*domain.File, error) {
	return nil, errors.New("not used")
}

type foldersFake struct{}

func (foldersFake) Create(context.Context, string, string, *string) (*domain.Folder, error) {
	return nil, errors.New("not used")
}

func (foldersFake) List(_ context.Context, userID string) ([]domain.Folder, error) {
	return []domain.Folder{{ID: "d1", UserID: userID, Name: "Finance", Path: "Finance"}}, nil
}

func (foldersFake) Update(context.Context, string, string, domain.FolderUpdate) (*domain.Folder, error) {
	return nil, errors.New("not used")
}

func (foldersFake) Delete(context.Context, string, string) error { return errors.New("not used") }

type commandsFake struct {
	submitted []string
}

func (f *commandsFake) Submit(_ context.Context, userID, command string) (*domain.AICommand, error) {
	f.submitted = append(f.submitted, command)
	return &domain.AICommand{ID: "c1", UserID: userID, Command: command, Status: domain.CommandProcessing}, nil
}

func (f *commandsFake) Get(context.Context, string, string) (*domain.AICommand, error) {
	return nil, errors.New("not used")
}

func (f *commandsFake) List(context.Context, string, int) ([]domain.AICommand, error) {
	return nil, errors.New("not used")
}

func newTestServer() (*Server, *filesFake, *commandsFake) {
	files := &filesFake{files: map[string]*domain.File{
		"f1": {ID: "f1", UserID: "alice", Name: "lease.pdf", ProcessingStatus: domain.StatusCompleted},
		"f2": {ID: "f2", UserID: "bob", Name: "other.pdf"},
	}}
	commands := &commandsFake{}
	return NewServer(files, foldersFake{}, commands), files, commands
}

func asUser(userID string) context.Context {
	return context.WithValue(context.Background(), userIDKey{}, userID)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestToolsRequireCaller(t *testing.T) {
	s, _, _ := newTestServer()

	result, err := s.handleListFolders(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "X-User-Id")
}

func TestListFilesScopesToCaller(t *testing.T) {
	s, files, _ := newTestServer()

	result, err := s.handleListFiles(asUser("alice"), callRequest(map[string]any{"folder_id": "root", "status": "completed"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.True(t, files.lastFilter.RootOnly)
	assert.Equal(t, domain.StatusCompleted, files.lastFilter.Status)

	var got []domain.File
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "f1", got[0].ID)
}

func TestGetFileForeignIsNotFound(t *testing.T) {
	s, _, _ := newTestServer()

	result, err := s.handleGetFile(asUser("alice"), callRequest(map[string]any{"id": "f2"}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")

	result, err = s.handleGetFile(asUser("alice"), callRequest(nil))
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	s, files, _ := newTestServer()
	files.listErr = errors.New("connection refused to 10.0.0.5")

	result, err := s.handleListFiles(asUser("alice"), callRequest(nil))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Equal(t, "list_files failed", resultText(t, result))
}

func TestSubmitCommand(t *testing.T) {
	s, _, commands := newTestServer()

	result, err := s.handleSubmitCommand(asUser("alice"), callRequest(map[string]any{"command": "organize my invoices"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, []string{"organize my invoices"}, commands.submitted)

	var cmd domain.AICommand
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &cmd))
	assert.Equal(t, domain.CommandProcessing, cmd.Status)
}

func TestListFolders(t *testing.T) {
	s, _, _ := newTestServer()

	result, err := s.handleListFolders(asUser("alice"), callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Finance")
	assert.NotNil(t, s.Handler())
}
