package httpadapter

import (
	"net/http"
	"strings"
)

func (rt *Router) listFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := rt.folders.List(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (rt *Router) createFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := rt.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	folder, err := rt.folders.Create(r.Context(), userIDFromContext(r.Context()), strings.TrimSpace(req.Name), req.ParentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (rt *Router) updateFolder(w http.ResponseWriter, r *http.Request) {
	var req updateFolderRequest
	if err := rt.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	folder, err := rt.folders.Update(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), req.update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (rt *Router) deleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := rt.folders.Delete(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
