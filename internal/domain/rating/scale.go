// Package rating maps numeric credit ratings onto the 22-notch letter scale.
package rating

import (
	"fmt"
	"math"
)

// Bounds of the numeric scale.
const (
	MinCode = 0
	MaxCode = 21
	Levels  = MaxCode - MinCode + 1
)

// labels is the canonical table, indexed by code. Every other lookup is
// derived from it.
var labels = [Levels]string{
	"D", "C", "CC", "CCC-", "CCC", "CCC+",
	"B-", "B", "B+",
	"BB-", "BB", "BB+",
	"BBB-", "BBB", "BBB+",
	"A-", "A", "A+",
	"AA-", "AA", "AA+",
	"AAA",
}

var (
	codes  = make(map[string]int, Levels)
	domain = make([]string, 0, Levels)
)

func init() { //nolint:gochecknoinits // derived lookups for the constant table
	for code, label := range labels {
		codes[label] = code
	}
	for code := MaxCode; code >= MinCode; code-- {
		domain = append(domain, labels[code])
	}
}

// LabelOf returns the letter grade for a code in [0,21].
func LabelOf(code int) (string, error) {
	if code < MinCode || code > MaxCode {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, code)
	}
	return labels[code], nil
}

// CodeOf returns the code for a letter grade.
func CodeOf(label string) (int, error) {
	code, ok := codes[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return code, nil
}

// Domain returns the labels from AAA down to D. Aggregated results are
// aligned to this order.
func Domain() []string {
	out := make([]string, len(domain))
	copy(out, domain)
	return out
}

// Round rounds half to even, the tie rule of the numeric stack the panel
// was first analysed with (11.5 -> 12, 12.5 -> 12).
func Round(r float64) float64 { return math.RoundToEven(r) }

// Bucket rounds a rating and reports its code when it falls on the scale.
func Bucket(r float64) (int, bool) {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	rounded := Round(r)
	if rounded < MinCode || rounded > MaxCode {
		return 0, false
	}
	return int(rounded), true
}
