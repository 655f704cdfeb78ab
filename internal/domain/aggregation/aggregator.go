// Package aggregation computes the cross-sectional comparison: mean interest
// payments per rating bucket for each requested group in a snapshot year.
package aggregation

import (
	"errors"

	"github.com/okian/debtlens/internal/domain/model"
	"github.com/okian/debtlens/internal/domain/rating"
)

// Bucket is one rating notch of a group's result.
type Bucket struct {
	Label string                  `json:"label"`
	Code  int                     `json:"code"`
	Mean  model.Optional[float64] `json:"mean"`
	Count int                     `json:"count"`
}

// GroupResult is the aligned comparison for one group.
type GroupResult struct {
	Group string `json:"group"`
	// Buckets always has rating.Levels entries ordered AAA to D.
	Buckets []Bucket `json:"buckets"`
	// Summary is the unweighted mean of the present bucket means.
	Summary model.Optional[float64] `json:"summary"`
	// Rows counts the records that passed filtering for the year.
	Rows int `json:"rows"`
}

// Empty reports whether no record contributed. Such a group should not be
// drawn.
func (g GroupResult) Empty() bool { return !g.Summary.Present() }

// Means returns the 22 bucket means in domain order.
func (g GroupResult) Means() []model.Optional[float64] {
	out := make([]model.Optional[float64], len(g.Buckets))
	for i, b := range g.Buckets {
		out[i] = b.Mean
	}
	return out
}

// Result is the outcome of one aggregation request.
type Result struct {
	Year   int                    `json:"year"`
	Order  []string               `json:"order"`
	Groups map[string]GroupResult `json:"groups"`
	Errors map[string]error       `json:"-"`
}

// Empty reports whether nothing was requested.
func (r Result) Empty() bool { return len(r.Order) == 0 }

// Clone returns a deep copy that shares no maps or slices with r.
func (r Result) Clone() Result {
	out := Result{Year: r.Year}
	if r.Order != nil {
		out.Order = append([]string(nil), r.Order...)
	}
	if r.Groups != nil {
		out.Groups = make(map[string]GroupResult, len(r.Groups))
		for name, g := range r.Groups {
			g.Buckets = append([]Bucket(nil), g.Buckets...)
			out.Groups[name] = g
		}
	}
	if r.Errors != nil {
		out.Errors = make(map[string]error, len(r.Errors))
		for name, err := range r.Errors {
			out.Errors[name] = err
		}
	}
	return out
}

// Err joins the per-group failures, or returns nil.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, name := range r.Order {
		if err, ok := r.Errors[name]; ok {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Aggregator runs comparisons over a record set.
type Aggregator struct {
	field   model.GroupField
	virtual Definitions
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithGroupField sets which label groups are matched against.
func WithGroupField(f model.GroupField) Option {
	return func(a *Aggregator) {
		if f != "" {
			a.field = f
		}
	}
}

// WithVirtualGroups replaces the virtual group table.
func WithVirtualGroups(d Definitions) Option {
	return func(a *Aggregator) {
		a.virtual = make(Definitions, len(d))
		for name, vg := range d {
			a.virtual[name] = vg
		}
	}
}

// New creates an Aggregator grouping by continent with the default
// virtual groups.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		field:   model.FieldContinent,
		virtual: DefaultDefinitions(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Field returns the grouping field.
func (a *Aggregator) Field() model.GroupField { return a.field }

// IsVirtual reports whether name is a declared virtual group.
func (a *Aggregator) IsVirtual(name string) bool {
	_, ok := a.virtual[name]
	return ok
}

// Virtual returns a copy of the virtual group table.
func (a *Aggregator) Virtual() Definitions {
	out := make(Definitions, len(a.virtual))
	for k, v := range a.virtual {
		out[k] = v
	}
	return out
}

// Members returns the records a requested group resolves to in year,
// before missing values are dropped. Records of unknown year (0) never
// match.
func (a *Aggregator) Members(year int, group string, records model.RecordSet) ([]model.Record, error) {
	in, err := a.virtual.resolve(group)
	if err != nil {
		return nil, err
	}
	var out []model.Record
	for i := 0; i < records.Len(); i++ {
		r := records.At(i)
		if r.Year == 0 || r.Year != year {
			continue
		}
		if in(r.Group(a.field)) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Aggregate compares groups for a snapshot year. A group that cannot be
// resolved is reported in Result.Errors and the others are still computed.
func (a *Aggregator) Aggregate(year int, groups []string, records model.RecordSet) Result {
	res := Result{
		Year:   year,
		Order:  make([]string, 0, len(groups)),
		Groups: make(map[string]GroupResult, len(groups)),
	}

	seen := make(map[string]struct{}, len(groups))
	for _, name := range groups {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		res.Order = append(res.Order, name)

		members, err := a.Members(year, name, records)
		if err != nil {
			if res.Errors == nil {
				res.Errors = make(map[string]error)
			}
			res.Errors[name] = err
			continue
		}
		res.Groups[name] = bucketize(name, members)
	}
	return res
}

func bucketize(name string, members []model.Record) GroupResult {
	var sums [rating.Levels]float64
	var counts [rating.Levels]int
	rows := 0

	for _, r := range members {
		rt, ok := r.Rating.Get()
		if !ok {
			continue
		}
		m, ok := r.Metric.Get()
		if !ok {
			continue
		}
		code, ok := rating.Bucket(rt)
		if !ok {
			continue
		}
		sums[code] += m
		counts[code]++
		rows++
	}

	g := GroupResult{Group: name, Buckets: make([]Bucket, 0, rating.Levels), Rows: rows}
	var total float64
	present := 0
	for code := rating.MaxCode; code >= rating.MinCode; code-- {
		label, _ := rating.LabelOf(code)
		b := Bucket{Label: label, Code: code, Mean: model.None[float64](), Count: counts[code]}
		if counts[code] > 0 {
			mean := sums[code] / float64(counts[code])
			b.Mean = model.Some(mean)
			total += mean
			present++
		}
		g.Buckets = append(g.Buckets, b)
	}
	if present > 0 {
		g.Summary = model.Some(total / float64(present))
	}
	return g
}
