// Package normalize turns raw panel rows into typed records.
//
// The policy is permissive: a cell that cannot be coerced becomes missing
// and the row is kept. Normalization never fails.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/debtlens/internal/domain/model"
)

// Row is one raw input row keyed by column name. Cells may be text or
// numeric.
type Row map[string]any

// Columns names the source columns the normalizer reads.
type Columns struct {
	Year      string `koanf:"year"`
	Continent string `koanf:"continent"`
	Subregion string `koanf:"subregion"`
	Country   string `koanf:"country"`
	Rating    string `koanf:"rating"`
	Metric    string `koanf:"metric"`
}

// DefaultColumns returns the headers of the external-debt panel.
func DefaultColumns() Columns {
	return Columns{
		Year:      "Year",
		Continent: "CONTINENT",
		Subregion: "SUBREGION",
		Country:   "Country Name",
		Rating:    "Average Credit Rating",
		Metric:    "Interest payments on external debt (% of GNI)",
	}
}

// ParseWarning records a cell that could not be coerced. It is never fatal.
type ParseWarning struct {
	Row    int
	Column string
	Raw    string
}

func (w ParseWarning) Error() string {
	return fmt.Sprintf("row %d column %q: cannot parse %q", w.Row, w.Column, w.Raw)
}

func (w ParseWarning) Unwrap() error { return ErrParse }

// Normalizer converts rows using a column mapping.
type Normalizer struct {
	cols Columns
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithColumns overrides the column mapping. Empty names keep the default.
func WithColumns(c Columns) Option {
	return func(n *Normalizer) {
		if c.Year != "" {
			n.cols.Year = c.Year
		}
		if c.Continent != "" {
			n.cols.Continent = c.Continent
		}
		if c.Subregion != "" {
			n.cols.Subregion = c.Subregion
		}
		if c.Country != "" {
			n.cols.Country = c.Country
		}
		if c.Rating != "" {
			n.cols.Rating = c.Rating
		}
		if c.Metric != "" {
			n.cols.Metric = c.Metric
		}
	}
}

// New creates a Normalizer with the default panel columns.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{cols: DefaultColumns()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Columns returns the active column mapping.
func (n *Normalizer) Columns() Columns { return n.cols }

// Normalize converts rows into an immutable record set. The output has
// exactly one record per input row.
func (n *Normalizer) Normalize(rows []Row) (model.RecordSet, []ParseWarning) {
	records := make([]model.Record, 0, len(rows))
	var warnings []ParseWarning

	for i, row := range rows {
		num := func(col string) model.Optional[float64] {
			v, ok, bad := toFloat(row[col])
			if bad {
				warnings = append(warnings, ParseWarning{Row: i, Column: col, Raw: fmt.Sprint(row[col])})
			}
			if !ok {
				return model.None[float64]()
			}
			return model.Some(v)
		}

		year := 0
		if y, ok := num(n.cols.Year).Get(); ok {
			year = int(y)
		}
		records = append(records, model.Record{
			Continent: toLabel(row[n.cols.Continent]),
			Subregion: toLabel(row[n.cols.Subregion]),
			Country:   toLabel(row[n.cols.Country]),
			Year:      year,
			Rating:    num(n.cols.Rating),
			Metric:    num(n.cols.Metric),
		})
	}
	return model.NewRecordSet(records), warnings
}

// toFloat coerces a cell. ok is false for missing values; bad is true when
// a non-empty cell could not be parsed.
func toFloat(v any) (f float64, ok, bad bool) {
	switch x := v.(type) {
	case nil:
		return 0, false, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, false
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, true
		}
		f = p
	default:
		return 0, false, true
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, false
	}
	return f, true, false
}

func toLabel(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return model.MissingLabel
	case string:
		s = x
	case float64:
		if math.IsNaN(x) {
			return model.MissingLabel
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return model.MissingLabel
	}
	return s
}
