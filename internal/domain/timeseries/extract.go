// Package timeseries extracts one country's yearly metric over a window.
package timeseries

import (
	"fmt"
	"sort"

	"github.com/okian/debtlens/internal/domain/model"
	"github.com/okian/debtlens/internal/domain/selection"
)

// Point is one year of a series.
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Series is the ordered result for one key and window. Points are strictly
// increasing by year and all lie inside [From, To].
type Series struct {
	Key    selection.Key `json:"key"`
	From   int           `json:"from"`
	To     int           `json:"to"`
	Points []Point       `json:"points"`
}

// Empty reports whether no year had data. This is a normal outcome.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// Clone returns a copy whose Points do not alias s.
func (s Series) Clone() Series {
	if s.Points != nil {
		s.Points = append([]Point(nil), s.Points...)
	}
	return s
}

// Extract filters records to key and the closed window [from, to], drops
// unknown years and missing metrics, and sorts by year. Several records for
// the same year are averaged into one point.
func Extract(field model.GroupField, key selection.Key, from, to int, records model.RecordSet) (Series, error) {
	if from > to {
		return Series{}, fmt.Errorf("%w: %d > %d", ErrInvalidWindow, from, to)
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i := 0; i < records.Len(); i++ {
		r := records.At(i)
		if r.Group(field) != key.Group || r.Country != key.Country {
			continue
		}
		if r.Year == 0 || r.Year < from || r.Year > to {
			continue
		}
		v, ok := r.Metric.Get()
		if !ok {
			continue
		}
		sums[r.Year] += v
		counts[r.Year]++
	}

	s := Series{Key: key, From: from, To: to, Points: make([]Point, 0, len(counts))}
	for year, n := range counts {
		s.Points = append(s.Points, Point{Year: year, Value: sums[year] / float64(n)})
	}
	sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Year < s.Points[j].Year })
	return s, nil
}
