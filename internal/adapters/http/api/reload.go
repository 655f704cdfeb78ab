package api

import (
	"net/http"
	"time"
)

// ReloadHandler re-reads the panel on demand.
type ReloadHandler struct {
	deps Dependencies
}

// NewReloadHandler creates a new reload handler.
func NewReloadHandler(deps Dependencies) *ReloadHandler {
	return &ReloadHandler{deps: deps}
}

type reloadResponse struct {
	Version    string    `json:"version"`
	LoadedAt   time.Time `json:"loaded_at"`
	Records    int       `json:"records"`
	Selections int       `json:"selections"`
	Warnings   int       `json:"warnings"`
}

// HandleReload handles POST /reload.
func (h *ReloadHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.reload"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	snap, err := h.deps.Reload(r.Context())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{
		Version:    snap.Version.String(),
		LoadedAt:   snap.LoadedAt,
		Records:    snap.Records.Len(),
		Selections: snap.Index.Len(),
		Warnings:   len(snap.Warnings),
	})
}
