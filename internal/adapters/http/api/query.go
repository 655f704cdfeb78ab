package api

import (
	"net/http"
	"strings"

	"github.com/okian/debtlens/internal/domain/view"
)

// QueryHandler serves the stateless snapshot queries.
type QueryHandler struct {
	deps Dependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps Dependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

type selectionsResponse struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

// HandleSelections handles GET /selections.
func (h *QueryHandler) HandleSelections(w http.ResponseWriter, r *http.Request) {
	const op = "api.selections"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	keys, err := h.deps.Selections(r.Context())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, selectionsResponse{Count: len(keys), Keys: keys})
}

// HandleAggregate handles GET /aggregate?year=&group=.
// group may repeat or hold a comma separated list.
func (h *QueryHandler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	const op = "api.aggregate"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	year, err := intParam(r, "year", view.DefaultSnapshotYear)
	if err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if year <= 0 {
		writeDomainError(w, WrapKind(op, ErrBadRequest, errYear))
		return
	}
	res, err := h.deps.Aggregate(r.Context(), year, listParam(r, "group"))
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newComparisonResponse(res))
}

// HandleSeries handles GET /series?key=&from=&to=.
func (h *QueryHandler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	const op = "api.series"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeDomainError(w, NewKind(op, ErrBadRequest))
		return
	}
	from, err := intParam(r, "from", view.DefaultSeriesFrom)
	if err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	to, err := intParam(r, "to", view.DefaultSeriesTo)
	if err != nil {
		writeDomainError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	series, err := h.deps.Series(r.Context(), key, from, to)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, series)
}
