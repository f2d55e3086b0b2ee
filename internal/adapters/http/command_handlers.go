package httpadapter

import "net/http"

func (rt *Router) submitCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := rt.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	cmd, err := rt.commands.Submit(r.Context(), userIDFromContext(r.Context()), req.Command)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (rt *Router) listCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := rt.commands.List(r.Context(), userIDFromContext(r.Context()), queryInt(r, "limit", rt.commandHistorySize))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmds)
}

func (rt *Router) getCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := rt.commands.Get(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (rt *Router) onboard(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if err := rt.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	folders, err := rt.onboarding.Onboard(r.Context(), userIDFromContext(r.Context()), req.profile())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (rt *Router) me(w http.ResponseWriter, r *http.Request) {
	user, err := rt.users.Get(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
