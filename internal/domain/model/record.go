// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// MissingLabel replaces a missing group, subregion or country so grouping
// still produces a stable bucket for the row.
const MissingLabel = "nan"

// GroupField selects which geographic label a record is grouped by.
type GroupField string

// Supported grouping granularities.
const (
	FieldContinent GroupField = "continent"
	FieldSubregion GroupField = "subregion"
)

// ParseGroupField resolves a configured field name.
func ParseGroupField(s string) (GroupField, error) {
	switch GroupField(strings.ToLower(strings.TrimSpace(s))) {
	case FieldContinent, "":
		return FieldContinent, nil
	case FieldSubregion:
		return FieldSubregion, nil
	default:
		return "", fmt.Errorf("unknown group field %q", s)
	}
}

// Record is one country-year observation of the panel.
// Records are immutable once normalized.
type Record struct {
	Continent string
	Subregion string
	Country   string
	Year      int               // 0 when unknown
	Rating    Optional[float64] // average credit rating on the 0..21 scale
	Metric    Optional[float64] // interest payments on external debt, % of GNI
}

// Group returns the record's label for the given grouping field.
func (r Record) Group(field GroupField) string {
	if field == FieldSubregion {
		return r.Subregion
	}
	return r.Continent
}

// RecordSet is an immutable, ordered sequence of records.
type RecordSet struct {
	records []Record
}

// NewRecordSet copies records into a new set.
func NewRecordSet(records []Record) RecordSet {
	cp := make([]Record, len(records))
	copy(cp, records)
	return RecordSet{records: cp}
}

// Len returns the number of records.
func (s RecordSet) Len() int { return len(s.records) }

// At returns the i-th record.
func (s RecordSet) At(i int) Record { return s.records[i] }

// Records returns a copy of the underlying records.
func (s RecordSet) Records() []Record {
	cp := make([]Record, len(s.records))
	copy(cp, s.records)
	return cp
}
