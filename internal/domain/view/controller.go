// Package view coordinates user selections and the results derived from
// them.
//
// The Controller is the single owner of what changed and what must be
// recomputed. Each derived result is memoised against a generation counter
// of its own inputs: a transition bumps only the counters it affects, and
// the next query recomputes whatever is stale. Nothing is computed in the
// background.
package view

import (
	"fmt"
	"slices"
	"sync"

	"github.com/okian/debtlens/internal/domain/aggregation"
	"github.com/okian/debtlens/internal/domain/model"
	"github.com/okian/debtlens/internal/domain/selection"
	"github.com/okian/debtlens/internal/domain/timeseries"
)

// Defaults mirroring the panel the dashboard was built for.
const (
	DefaultSnapshotYear = 2022
	DefaultSeriesFrom   = 2012
	DefaultSeriesTo     = 2022
)

// Mode is the active view.
type Mode int

// View modes.
const (
	ModeGroupComparison Mode = iota
	ModeCountrySeries
)

func (m Mode) String() string {
	switch m {
	case ModeGroupComparison:
		return "BY_GROUP_COMPARISON"
	case ModeCountrySeries:
		return "BY_COUNTRY_SERIES"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ParseMode resolves a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "BY_GROUP_COMPARISON":
		return ModeGroupComparison, nil
	case "BY_COUNTRY_SERIES":
		return ModeCountrySeries, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// State is a copy of the controller's selections.
type State struct {
	Mode       Mode           `json:"mode"`
	Groups     []string       `json:"groups"`
	Key        *selection.Key `json:"key"`
	Year       int            `json:"year"`
	From       int            `json:"from"`
	To         int            `json:"to"`
	Selections []string       `json:"selections"`
	Records    int            `json:"records"`
}

// Result is the output for the active mode. Exactly one of Comparison and
// Series is set, except that Series is nil while no key is selected.
type Result struct {
	Mode       Mode                `json:"mode"`
	Comparison *aggregation.Result `json:"comparison,omitempty"`
	Series     *timeseries.Series  `json:"series,omitempty"`
}

// Stats counts how often each derived result was recomputed.
type Stats struct {
	Aggregations int `json:"aggregations"`
	Extractions  int `json:"extractions"`
}

type memo[T any] struct {
	gen   uint64
	valid bool
	value T
	err   error
}

// get returns the memoised value for gen, computing it first when stale.
// ran reports whether compute was called.
func (m *memo[T]) get(gen uint64, compute func() (T, error)) (value T, ran bool, err error) {
	if m.valid && m.gen == gen {
		return m.value, false, m.err
	}
	m.value, m.err = compute()
	m.gen, m.valid = gen, true
	return m.value, true, m.err
}

// Controller holds the current selections and record set.
type Controller struct {
	mu sync.Mutex

	agg *aggregation.Aggregator

	mode   Mode
	groups []string
	key    model.Optional[selection.Key]
	year   int
	from   int
	to     int

	records model.RecordSet
	index   selection.Index

	compGen    uint64
	seriesGen  uint64
	compMemo   memo[aggregation.Result]
	seriesMemo memo[*timeseries.Series]
	stats      Stats
}

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithAggregator sets the aggregator, which also fixes the grouping field.
func WithAggregator(a *aggregation.Aggregator) Option {
	return func(c *Controller) {
		if a != nil {
			c.agg = a
		}
	}
}

// WithDefaultGroups sets the initial comparison selection.
func WithDefaultGroups(groups []string) Option {
	return func(c *Controller) {
		if len(groups) > 0 {
			c.groups = slices.Clone(groups)
		}
	}
}

// WithSnapshotYear sets the initial comparison year.
func WithSnapshotYear(year int) Option {
	return func(c *Controller) {
		if year > 0 {
			c.year = year
		}
	}
}

// WithWindow sets the initial series window.
func WithWindow(from, to int) Option {
	return func(c *Controller) {
		if from > 0 && to >= from {
			c.from, c.to = from, to
		}
	}
}

// WithRecords seeds the controller with an initial record set.
func WithRecords(records model.RecordSet) Option {
	return func(c *Controller) {
		c.records = records
	}
}

// New creates a Controller in comparison mode with no country selected.
func New(opts ...Option) *Controller {
	c := &Controller{
		agg:    aggregation.New(),
		mode:   ModeGroupComparison,
		groups: []string{"Africa"},
		year:   DefaultSnapshotYear,
		from:   DefaultSeriesFrom,
		to:     DefaultSeriesTo,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.index = selection.Build(c.records, c.agg.Field())
	return c
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ToggleMode switches between the two views and returns the new mode.
// Each mode keeps its own selection.
func (c *Controller) ToggleMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeGroupComparison {
		c.mode = ModeCountrySeries
	} else {
		c.mode = ModeGroupComparison
	}
	return c.mode
}

// SetGroups replaces the comparison selection. An empty selection is
// allowed and yields an empty comparison.
func (c *Controller) SetGroups(groups []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeGroupComparison {
		return fmt.Errorf("%w: groups are selected in %s", ErrWrongMode, ModeGroupComparison)
	}
	c.groups = slices.Clone(groups)
	c.compGen++
	return nil
}

// SetSelectionKey selects the country series by its canonical string. An
// unknown key is rejected and the previous selection is kept.
func (c *Controller) SetSelectionKey(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeCountrySeries {
		return fmt.Errorf("%w: keys are selected in %s", ErrWrongMode, ModeCountrySeries)
	}
	k, ok := c.index.Lookup(s)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSelectionKey, s)
	}
	c.key = model.Some(k)
	c.seriesGen++
	return nil
}

// SetSnapshotYear changes the comparison year.
func (c *Controller) SetSnapshotYear(year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if year != c.year {
		c.year = year
		c.compGen++
	}
}

// SetWindow changes the series window.
func (c *Controller) SetWindow(from, to int) error {
	if from > to {
		return fmt.Errorf("%w: %d > %d", timeseries.ErrInvalidWindow, from, to)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if from != c.from || to != c.to {
		c.from, c.to = from, to
		c.seriesGen++
	}
	return nil
}

// DataReloaded swaps in a new record set, rebuilds the selection index and
// invalidates every derived result. A selected key that no longer exists is
// cleared.
func (c *Controller) DataReloaded(records model.RecordSet) {
	index := selection.Build(records, c.agg.Field())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = records
	c.index = index
	if k, ok := c.key.Get(); ok && !index.Contains(k) {
		c.key = model.None[selection.Key]()
	}
	c.compGen++
	c.seriesGen++
}

// SelectionIndex returns the index built from the current records.
func (c *Controller) SelectionIndex() selection.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// State returns a copy of the current selections.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Mode:       c.mode,
		Groups:     slices.Clone(c.groups),
		Year:       c.year,
		From:       c.from,
		To:         c.to,
		Selections: c.index.Strings(),
		Records:    c.records.Len(),
	}
	if k, ok := c.key.Get(); ok {
		st.Key = &k
	}
	return st
}

// Stats returns recomputation counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// CurrentResult returns the result for the active mode, recomputing it if
// any of its inputs changed since the last query. The result is a copy and
// may be modified by the caller.
func (c *Controller) CurrentResult() (Result, error) {
	res, _, err := c.Evaluate()
	return res, err
}

// Evaluate is CurrentResult that also reports whether this call
// recomputed the result.
func (c *Controller) Evaluate() (res Result, recomputed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res = Result{Mode: c.mode}
	switch c.mode {
	case ModeGroupComparison:
		comp, ran, _ := c.compMemo.get(c.compGen, func() (aggregation.Result, error) {
			return c.agg.Aggregate(c.year, c.groups, c.records), nil
		})
		if ran {
			c.stats.Aggregations++
		}
		comp = comp.Clone()
		res.Comparison = &comp
		return res, ran, nil
	default:
		k, ok := c.key.Get()
		if !ok {
			return res, false, nil
		}
		s, ran, err := c.seriesMemo.get(c.seriesGen, func() (*timeseries.Series, error) {
			series, err := timeseries.Extract(c.agg.Field(), k, c.from, c.to, c.records)
			if err != nil {
				return nil, err
			}
			return &series, nil
		})
		if ran {
			c.stats.Extractions++
		}
		if err != nil {
			return res, ran, err
		}
		series := s.Clone()
		res.Series = &series
		return res, ran, nil
	}
}
