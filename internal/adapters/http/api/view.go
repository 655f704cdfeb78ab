package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/okian/debtlens/internal/domain/view"
)

// ViewHandler exposes the interactive view controller.
type ViewHandler struct {
	deps Dependencies
}

// NewViewHandler creates a new view handler.
func NewViewHandler(deps Dependencies) *ViewHandler {
	return &ViewHandler{deps: deps}
}

type viewResultResponse struct {
	Mode       view.Mode           `json:"mode"`
	Comparison *comparisonResponse `json:"comparison,omitempty"`
	Series     any                 `json:"series"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type groupsRequest struct {
	Groups []string `json:"groups"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type yearRequest struct {
	Year int `json:"year"`
}

type windowRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// HandleState handles GET /view.
func (h *ViewHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.view", http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ViewState())
}

// HandleResult handles GET /view/result. In series mode with no key
// selected the series is null.
func (h *ViewHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.view.result"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	res, err := h.deps.ViewResult(r.Context())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	out := viewResultResponse{Mode: res.Mode}
	if res.Comparison != nil {
		c := newComparisonResponse(*res.Comparison)
		out.Comparison = &c
	}
	if res.Series != nil {
		out.Series = res.Series
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMode handles POST /view/mode. An empty body toggles; a body naming
// a mode switches to it.
func (h *ViewHandler) HandleMode(w http.ResponseWriter, r *http.Request) {
	const op = "api.view.mode"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	var req modeRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Mode == "" {
		h.deps.ToggleMode(r.Context())
	} else {
		want, err := view.ParseMode(req.Mode)
		if err != nil {
			writeDomainError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		if h.deps.ViewState().Mode != want {
			h.deps.ToggleMode(r.Context())
		}
	}
	writeJSON(w, http.StatusOK, h.deps.ViewState())
}

// HandleGroups handles POST /view/groups.
func (h *ViewHandler) HandleGroups(w http.ResponseWriter, r *http.Request) {
	const op = "api.view.groups"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	var req groupsRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetGroups(r.Context(), req.Groups); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ViewState())
}

// HandleKey handles POST /view/key.
func (h *ViewHandler) HandleKey(w http.ResponseWriter, r *http.Request) {
	const op = "api.view.key"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	var req keyRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetSelectionKey(r.Context(), req.Key); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ViewState())
}

// HandleYear handles POST /view/year.
func (h *ViewHandler) HandleYear(w http.ResponseWriter, r *http.Request) {
	const op = "api.view.year"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	var req yearRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Year <= 0 {
		writeDomainError(w, WrapKind(op, ErrBadRequest, errYear))
		return
	}
	h.deps.SetSnapshotYear(r.Context(), req.Year)
	writeJSON(w, http.StatusOK, h.deps.ViewState())
}

// HandleWindow handles POST /view/window.
func (h *ViewHandler) HandleWindow(w http.ResponseWriter, r *http.Request) {
	const op = "api.view.window"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}
	var req windowRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SetWindow(r.Context(), req.From, req.To); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ViewState())
}
