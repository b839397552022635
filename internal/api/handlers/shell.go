package handlers

import (
	"net/http"
	"route-profile-service/internal/api/dto"
	"route-profile-service/internal/ports"
)

type ShellHandler struct {
	Shell ports.WindowShell
}

func (h *ShellHandler) Minimize(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	h.Shell.Minimize()
	w.WriteHeader(http.StatusAccepted)
}

func (h *ShellHandler) Maximize(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	h.Shell.Maximize()
	w.WriteHeader(http.StatusAccepted)
}

func (h *ShellHandler) Open(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.OpenExternalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Shell.OpenExternal(req.URL); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
