// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/debtlens/internal/adapters/repository"
	"github.com/okian/debtlens/internal/domain/aggregation"
	"github.com/okian/debtlens/internal/domain/timeseries"
	"github.com/okian/debtlens/internal/domain/view"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Stateless queries against the current snapshot.
	Selections(ctx context.Context) ([]string, error)
	Aggregate(ctx context.Context, year int, groups []string) (aggregation.Result, error)
	Series(ctx context.Context, key string, from, to int) (timeseries.Series, error)

	// View controller transitions.
	ViewState() view.State
	ViewResult(ctx context.Context) (view.Result, error)
	ToggleMode(ctx context.Context) view.Mode
	SetGroups(ctx context.Context, groups []string) error
	SetSelectionKey(ctx context.Context, key string) error
	SetSnapshotYear(ctx context.Context, year int)
	SetWindow(ctx context.Context, from, to int) error

	// Reload re-reads the panel.
	Reload(ctx context.Context) (*repository.Snapshot, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	queryHandler  *QueryHandler
	viewHandler   *ViewHandler
	reloadHandler *ReloadHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		queryHandler:  NewQueryHandler(deps),
		viewHandler:   NewViewHandler(deps),
		reloadHandler: NewReloadHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/selections", MetricsMiddleware(s.queryHandler.HandleSelections, "selections"))
	mux.HandleFunc("/aggregate", MetricsMiddleware(s.queryHandler.HandleAggregate, "aggregate"))
	mux.HandleFunc("/series", MetricsMiddleware(s.queryHandler.HandleSeries, "series"))
	mux.HandleFunc("/view", MetricsMiddleware(s.viewHandler.HandleState, "view"))
	mux.HandleFunc("/view/result", MetricsMiddleware(s.viewHandler.HandleResult, "view_result"))
	mux.HandleFunc("/view/mode", MetricsMiddleware(s.viewHandler.HandleMode, "view_mode"))
	mux.HandleFunc("/view/groups", MetricsMiddleware(s.viewHandler.HandleGroups, "view_groups"))
	mux.HandleFunc("/view/key", MetricsMiddleware(s.viewHandler.HandleKey, "view_key"))
	mux.HandleFunc("/view/year", MetricsMiddleware(s.viewHandler.HandleYear, "view_year"))
	mux.HandleFunc("/view/window", MetricsMiddleware(s.viewHandler.HandleWindow, "view_window"))
	mux.HandleFunc("/reload", MetricsMiddleware(s.reloadHandler.HandleReload, "reload"))
}

// comparisonResponse is aggregation.Result with its per-group failures
// rendered as messages.
type comparisonResponse struct {
	Year   int                                `json:"year"`
	Order  []string                           `json:"order"`
	Groups map[string]aggregation.GroupResult `json:"groups"`
	Errors map[string]string                  `json:"errors,omitempty"`
}

func newComparisonResponse(r aggregation.Result) comparisonResponse {
	out := comparisonResponse{Year: r.Year, Order: r.Order, Groups: r.Groups}
	if out.Order == nil {
		out.Order = []string{}
	}
	if out.Groups == nil {
		out.Groups = map[string]aggregation.GroupResult{}
	}
	if len(r.Errors) > 0 {
		out.Errors = make(map[string]string, len(r.Errors))
		for name, err := range r.Errors {
			out.Errors[name] = err.Error()
		}
	}
	return out
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps known sentinel kinds to a status and code.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, timeseries.ErrInvalidWindow), errors.Is(err, view.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, view.ErrUnknownSelectionKey):
		writeError(w, http.StatusNotFound, "unknown_key", err)
	case errors.Is(err, view.ErrWrongMode):
		writeError(w, http.StatusConflict, "wrong_mode", err)
	case errors.Is(err, repository.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, "not_loaded", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, op, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethod))
	return false
}

// intParam reads an integer query parameter, returning def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + "; must be an integer")
	}
	return v, nil
}

// listParam collects repeated and comma separated values of a parameter.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
