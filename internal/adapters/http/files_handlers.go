package httpadapter

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kirillkom/docsort/internal/core/domain"
	"github.com/kirillkom/docsort/internal/core/ports"
)

const multipartMemory = 8 << 20

func (rt *Router) uploadFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("upload exceeds %d MB", rt.maxUploadBytes>>20),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart form is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := slices.Concat(r.MultipartForm.File["files"], r.MultipartForm.File["file"])
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'files' is required"})
		return
	}

	parts := make([]ports.UploadedPart, 0, len(headers))
	for _, header := range headers {
		body, err := header.Open()
		if err != nil {
			writeError(w, r, fmt.Errorf("open upload part %q: %w", header.Filename, err))
			return
		}
		defer body.Close()
		parts = append(parts, ports.UploadedPart{
			Filename: header.Filename,
			MimeType: partMediaType(header),
			Size:     header.Size,
			Body:     body,
		})
	}

	defaults := domain.DefaultProcessingOptions()
	req := ports.UploadRequest{
		UserID: userIDFromContext(r.Context()),
		Options: domain.ProcessingOptions{
			ExtractText:     formBool(r.FormValue("processOcr"), defaults.ExtractText),
			GenerateSummary: formBool(r.FormValue("generateSummary"), defaults.GenerateSummary),
			AutoTag:         formBool(r.FormValue("autoTag"), defaults.AutoTag),
		},
		Parts: parts,
	}
	if folderID := strings.TrimSpace(r.FormValue("folderId")); folderID != "" && folderID != "root" {
		req.FolderID = &folderID
	}

	files, err := rt.uploader.Upload(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		for _, part := range parts {
			rt.metrics.RecordUpload(part.Size)
		}
	}
	writeJSON(w, http.StatusOK, files)
}

// partMediaType trusts the declared part type and falls back to the file extension.
func partMediaType(header *multipart.FileHeader) string {
	declared := strings.TrimSpace(header.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
		return byExt
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

func (rt *Router) listFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.FileFilter{Status: domain.ProcessingStatus(strings.TrimSpace(query.Get("status")))}
	switch folderID := strings.TrimSpace(query.Get("folderId")); folderID {
	case "":
	case "root":
		filter.RootOnly = true
	default:
		filter.FolderID = folderID
	}

	files, err := rt.files.List(r.Context(), userIDFromContext(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (rt *Router) getFile(w http.ResponseWriter, r *http.Request) {
	file, err := rt.files.Get(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (rt *Router) updateFile(w http.ResponseWriter, r *http.Request) {
	var req updateFileRequest
	if err := rt.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	file, err := rt.files.Update(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), req.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (rt *Router) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := rt.files.Delete(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reprocessFile(w http.ResponseWriter, r *http.Request) {
	var req processingOptionsRequest
	if err := rt.decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	file, err := rt.files.Reprocess(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), req.options())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, file)
}
