package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/debtlens/internal/adapters/http/api"
	"github.com/okian/debtlens/internal/adapters/repository"
	"github.com/okian/debtlens/internal/domain/aggregation"
	"github.com/okian/debtlens/internal/domain/model"
	"github.com/okian/debtlens/internal/domain/selection"
	"github.com/okian/debtlens/internal/domain/timeseries"
	"github.com/okian/debtlens/internal/domain/view"
)

// mockDependencies records calls and returns canned answers.
type mockDependencies struct {
	keys      []string
	keysErr   error
	agg       aggregation.Result
	lastYear  int
	lastGroup []string
	series    timeseries.Series
	seriesErr error
	lastFrom  int
	lastTo    int

	state     view.State
	result    view.Result
	setErr    error
	toggles   int
	reloadErr error
}

func (m *mockDependencies) Selections(context.Context) ([]string, error) {
	return m.keys, m.keysErr
}

func (m *mockDependencies) Aggregate(_ context.Context, year int, groups []string) (aggregation.Result, error) {
	m.lastYear, m.lastGroup = year, groups
	return m.agg, nil
}

func (m *mockDependencies) Series(_ context.Context, _ string, from, to int) (timeseries.Series, error) {
	m.lastFrom, m.lastTo = from, to
	return m.series, m.seriesErr
}

func (m *mockDependencies) ViewState() view.State { return m.state }

func (m *mockDependencies) ViewResult(context.Context) (view.Result, error) { return m.result, nil }

func (m *mockDependencies) ToggleMode(context.Context) view.Mode {
	m.toggles++
	if m.state.Mode == view.ModeGroupComparison {
		m.state.Mode = view.ModeCountrySeries
	} else {
		m.state.Mode = view.ModeGroupComparison
	}
	return m.state.Mode
}

func (m *mockDependencies) SetGroups(_ context.Context, groups []string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.state.Groups = groups
	return nil
}

func (m *mockDependencies) SetSelectionKey(_ context.Context, key string) error {
	if m.setErr != nil {
		return m.setErr
	}
	k := selection.Key{Group: "Africa", Country: strings.TrimPrefix(key, "Africa - ")}
	m.state.Key = &k
	return nil
}

func (m *mockDependencies) SetSnapshotYear(_ context.Context, year int) { m.state.Year = year }

func (m *mockDependencies) SetWindow(_ context.Context, from, to int) error {
	if from > to {
		return timeseries.ErrInvalidWindow
	}
	m.state.From, m.state.To = from, to
	return nil
}

func (m *mockDependencies) Reload(context.Context) (*repository.Snapshot, error) {
	if m.reloadErr != nil {
		return nil, m.reloadErr
	}
	return &repository.Snapshot{
		Version: uuid.New(),
		Records: model.NewRecordSet([]model.Record{{Continent: "Africa", Country: "Kenya", Year: 2022}}),
	}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{state: view.State{Mode: view.ModeGroupComparison, Groups: []string{"Africa"}}}
		mux := newMux(deps)

		Convey("Then the health endpoint should expose metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "debtlens_")
		})

		Convey("Then the stats endpoint should be accessible", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then a wrong method should be rejected", func() {
			w := do(mux, http.MethodPost, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)
		})
	})
}

func TestQueryHandlers(t *testing.T) {
	Convey("Given a query handler", t, func() {
		deps := &mockDependencies{keys: []string{"Africa - Kenya", "Asia - India"}}
		mux := newMux(deps)

		Convey("When selections are listed", func() {
			w := do(mux, http.MethodGet, "/selections", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["count"], ShouldEqual, 2.0)
		})

		Convey("When no snapshot is loaded", func() {
			deps.keysErr = repository.ErrNoSnapshot
			w := do(mux, http.MethodGet, "/selections", "")

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "not_loaded")
		})

		Convey("When groups are aggregated", func() {
			deps.agg = aggregation.Result{
				Year:   2020,
				Order:  []string{"Africa", "Loop"},
				Groups: map[string]aggregation.GroupResult{"Africa": {Group: "Africa", Summary: model.Some(2.5)}},
				Errors: map[string]error{"Loop": aggregation.ErrInvalidVirtualGroup},
			}
			w := do(mux, http.MethodGet, "/aggregate?year=2020&group=Africa,Loop&group=Asia", "")

			Convey("Then parameters should be parsed and failures reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastYear, ShouldEqual, 2020)
				So(deps.lastGroup, ShouldResemble, []string{"Africa", "Loop", "Asia"})
				body := decode(w)
				So(body["errors"], ShouldContainKey, "Loop")
				groups := body["groups"].(map[string]any)
				So(groups["Africa"].(map[string]any)["summary"], ShouldEqual, 2.5)
			})
		})

		Convey("When the year is not a number", func() {
			w := do(mux, http.MethodGet, "/aggregate?year=soon", "")

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the year is zero or negative", func() {
			deps.lastYear = -1

			So(do(mux, http.MethodGet, "/aggregate?year=0&group=Africa", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/aggregate?year=-2020", "").Code, ShouldEqual, http.StatusBadRequest)
			So(deps.lastYear, ShouldEqual, -1)
		})

		Convey("When a series is requested without a window", func() {
			w := do(mux, http.MethodGet, "/series?key=Africa+-+Kenya", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastFrom, ShouldEqual, view.DefaultSeriesFrom)
			So(deps.lastTo, ShouldEqual, view.DefaultSeriesTo)
		})

		Convey("When a series key is missing", func() {
			w := do(mux, http.MethodGet, "/series", "")

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a series key is unknown", func() {
			deps.seriesErr = view.ErrUnknownSelectionKey
			w := do(mux, http.MethodGet, "/series?key=Nowhere", "")

			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "unknown_key")
		})

		Convey("When a series window is inverted", func() {
			deps.seriesErr = timeseries.ErrInvalidWindow
			w := do(mux, http.MethodGet, "/series?key=Africa+-+Kenya&from=2022&to=2012", "")

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestViewHandlers(t *testing.T) {
	Convey("Given a view handler", t, func() {
		deps := &mockDependencies{state: view.State{Mode: view.ModeGroupComparison}}
		mux := newMux(deps)

		Convey("When the mode is posted without a body", func() {
			w := do(mux, http.MethodPost, "/view/mode", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["mode"], ShouldEqual, "BY_COUNTRY_SERIES")
		})

		Convey("When the current mode is requested explicitly", func() {
			w := do(mux, http.MethodPost, "/view/mode", `{"mode":"BY_GROUP_COMPARISON"}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.toggles, ShouldEqual, 0)
		})

		Convey("When an unknown mode is requested", func() {
			w := do(mux, http.MethodPost, "/view/mode", `{"mode":"SIDEWAYS"}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When groups are set", func() {
			w := do(mux, http.MethodPost, "/view/groups", `{"groups":["Asia","Europe"]}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.state.Groups, ShouldResemble, []string{"Asia", "Europe"})
		})

		Convey("When groups are set in the wrong mode", func() {
			deps.setErr = view.ErrWrongMode
			w := do(mux, http.MethodPost, "/view/groups", `{"groups":["Asia"]}`)

			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When the body is malformed", func() {
			w := do(mux, http.MethodPost, "/view/key", `{"key":`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a key is set", func() {
			w := do(mux, http.MethodPost, "/view/key", `{"key":"Africa - Kenya"}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			key := decode(w)["key"].(map[string]any)
			So(key["country"], ShouldEqual, "Kenya")
		})

		Convey("When the year and window are set", func() {
			So(do(mux, http.MethodPost, "/view/year", `{"year":2019}`).Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodPost, "/view/window", `{"from":2000,"to":2010}`).Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodPost, "/view/window", `{"from":2010,"to":2000}`).Code, ShouldEqual, http.StatusBadRequest)

			st := decode(do(mux, http.MethodGet, "/view", ""))
			So(st["year"], ShouldEqual, 2019.0)
			So(st["from"], ShouldEqual, 2000.0)
			So(st["to"], ShouldEqual, 2010.0)
		})

		Convey("When the year is missing or not positive", func() {
			So(do(mux, http.MethodPost, "/view/year", `{"year":2019}`).Code, ShouldEqual, http.StatusOK)

			w := do(mux, http.MethodPost, "/view/year", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/view/year", `{"year":-1}`).Code, ShouldEqual, http.StatusBadRequest)

			st := decode(do(mux, http.MethodGet, "/view", ""))
			So(st["year"], ShouldEqual, 2019.0)
		})

		Convey("When the series result has no key", func() {
			deps.result = view.Result{Mode: view.ModeCountrySeries}
			w := do(mux, http.MethodGet, "/view/result", "")

			Convey("Then the series should be null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["mode"], ShouldEqual, "BY_COUNTRY_SERIES")
				v, ok := body["series"]
				So(ok, ShouldBeTrue)
				So(v, ShouldBeNil)
			})
		})

		Convey("When a reload is posted", func() {
			w := do(mux, http.MethodPost, "/reload", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["records"], ShouldEqual, 1.0)
		})

		Convey("When a reload fails", func() {
			deps.reloadErr = errors.New("disk gone")
			w := do(mux, http.MethodPost, "/reload", "")

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestKindErrors(t *testing.T) {
	Convey("Given kind errors", t, func() {
		cause := errors.New("boom")

		Convey("Then WrapKind should match both kind and cause", func() {
			err := api.WrapKind("op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "op: bad request: boom")
		})

		Convey("Then Wrap should keep the cause's kind", func() {
			err := api.Wrap("op", view.ErrWrongMode)
			So(errors.Is(err, view.ErrWrongMode), ShouldBeTrue)
			So(api.Wrap("op", nil), ShouldBeNil)
		})

		Convey("Then NewKind should describe the operation", func() {
			So(api.NewKind("op", api.ErrMethod).Error(), ShouldEqual, "op: method not allowed")
		})
	})
}
