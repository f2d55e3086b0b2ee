package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/docsort/internal/config"
	"github.com/kirillkom/docsort/internal/core/domain"
)

func serve(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userIDHeader, "alice")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestListFilesFilters(t *testing.T) {
	fx := newRouterFixture(&domain.File{ID: "f1", UserID: "alice"}, &domain.File{ID: "f2", UserID: "bob"})
	handler := fx.handler(config.Config{}, Options{})

	res := serve(t, handler, http.MethodGet, "/api/files?folderId=root&status=failed", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, fx.files.lastFilter.RootOnly)
	assert.Equal(t, domain.StatusFailed, fx.files.lastFilter.Status)

	var files []domain.File
	require.NoError(t, json.NewDecoder(res.Body).Decode(&files))
	require.Len(t, files, 1)
	assert.Equal(t, "f1", files[0].ID)

	res = serve(t, handler, http.MethodGet, "/api/files?folderId=d9", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "d9", fx.files.lastFilter.FolderID)
	assert.False(t, fx.files.lastFilter.RootOnly)
}

func TestUpdateFileDistinguishesNullFolder(t *testing.T) {
	folder := "d1"
	fx := newRouterFixture(&domain.File{ID: "f1", UserID: "alice", FolderID: &folder, Tags: []string{}})
	handler := fx.handler(config.Config{}, Options{})

	res := serve(t, handler, http.MethodPut, "/api/files/f1", map[string]any{"tags": []string{"invoice"}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Nil(t, fx.files.lastPatch.FolderID, "absent folderId must leave the folder untouched")

	res = serve(t, handler, http.MethodPut, "/api/files/f1", map[string]any{"folderId": nil})
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, fx.files.lastPatch.FolderID)
	assert.Nil(t, *fx.files.lastPatch.FolderID, "null folderId moves the file to root")

	var file domain.File
	require.NoError(t, json.NewDecoder(res.Body).Decode(&file))
	assert.Nil(t, file.FolderID)
	assert.Equal(t, []string{"invoice"}, file.Tags)
}

func TestDeleteFileReturns204(t *testing.T) {
	fx := newRouterFixture(&domain.File{ID: "f1", UserID: "alice"})
	handler := fx.handler(config.Config{}, Options{})

	res := serve(t, handler, http.MethodDelete, "/api/files/f1", nil)
	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Empty(t, fx.files.files)
}

func TestReprocessOptions(t *testing.T) {
	fx := newRouterFixture(&domain.File{ID: "f1", UserID: "alice", ProcessingStatus: domain.StatusFailed})
	handler := fx.handler(config.Config{}, Options{})

	res := serve(t, handler, http.MethodPost, "/api/files/f1/reprocess", nil)
	require.Equal(t, http.StatusAccepted, res.Code)
	assert.Equal(t, domain.DefaultProcessingOptions(), fx.files.lastOptions)

	res = serve(t, handler, http.MethodPost, "/api/files/f1/reprocess", map[string]any{"processOcr": false})
	require.Equal(t, http.StatusAccepted, res.Code)
	assert.False(t, fx.files.lastOptions.ExtractText)
	assert.True(t, fx.files.lastOptions.GenerateSummary)
}

func TestReprocessQueueFullReturns503(t *testing.T) {
	fx := newRouterFixture(&domain.File{ID: "f1", UserID: "alice"})
	fx.files.err = domain.WrapError(domain.ErrQueueFull, "submit job", assert.AnError)
	handler := fx.handler(config.Config{}, Options{})

	res := serve(t, handler, http.MethodPost, "/api/files/f1/reprocess", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestFolderEndpoints(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(config.Config{}, Options{})

	res := serve(t, handler, http.MethodPost, "/api/folders", map[string]any{"name": "Contracts", "parentId": "p1"})
	require.Equal(t, http.StatusCreated, res.Code)
	require.NotNil(t, fx.folders.lastParent)
	assert.Equal(t, "p1", *fx.folders.lastParent)

	res = serve(t, handler, http.MethodPost, "/api/folders", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = serve(t, handler, http.MethodPut, "/api/folders/d1", map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.False(t, fx.folders.lastUpdate.SetParent)

	res = serve(t, handler, http.MethodPut, "/api/folders/d1", map[string]any{"parentId": nil})
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, fx.folders.lastUpdate.SetParent)
	assert.Nil(t, fx.folders.lastUpdate.ParentID)

	res = serve(t, handler, http.MethodGet, "/api/folders", nil)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestCommandEndpoints(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(config.Config{CommandHistorySize: 20}, Options{})

	res := serve(t, handler, http.MethodPost, "/api/ai/command", map[string]any{"command": "move invoices to Finance"})
	require.Equal(t, http.StatusOK, res.Code)
	var cmd domain.AICommand
	require.NoError(t, json.NewDecoder(res.Body).Decode(&cmd))
	assert.Equal(t, domain.CommandProcessing, cmd.Status)

	res = serve(t, handler, http.MethodPost, "/api/ai/command", map[string]any{"command": ""})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = serve(t, handler, http.MethodGet, "/api/ai/commands", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 20, fx.commands.lastLimit)

	res = serve(t, handler, http.MethodGet, "/api/ai/commands?limit=5", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 5, fx.commands.lastLimit)

	res = serve(t, handler, http.MethodGet, "/api/ai/commands/missing", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestOnboardingEndpoint(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(config.Config{}, Options{})

	res := serve(t, handler, http.MethodPost, "/api/onboarding", map[string]any{
		"industry":    " Legal ",
		"teamSize":    "2-10",
		"description": "contracts and invoices",
	})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Legal", fx.onboarding.profile.Industry)

	var folders []domain.Folder
	require.NoError(t, json.NewDecoder(res.Body).Decode(&folders))
	assert.Len(t, folders, 1)

	res = serve(t, handler, http.MethodPost, "/api/onboarding", map[string]any{"teamSize": "1"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
