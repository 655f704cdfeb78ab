// Package selection builds the sorted list of (group, country) targets a
// user can pick for a time series.
package selection

import (
	"sort"

	"github.com/okian/debtlens/internal/domain/model"
)

// Separator joins group and country in a key's canonical rendering.
const Separator = " - "

// Key identifies one selectable country within a group.
type Key struct {
	Group   string `json:"group"`
	Country string `json:"country"`
}

// String renders the canonical "{group} - {country}" form.
func (k Key) String() string { return k.Group + Separator + k.Country }

// Index is an immutable, sorted, duplicate-free set of keys.
type Index struct {
	keys  []Key
	byKey map[string]Key
}

// Build projects records onto (group, country) using field, removes
// duplicates and sorts by canonical string.
func Build(records model.RecordSet, field model.GroupField) Index {
	byKey := make(map[string]Key)
	for i := 0; i < records.Len(); i++ {
		r := records.At(i)
		k := Key{Group: r.Group(field), Country: r.Country}
		byKey[k.String()] = k
	}

	names := make([]string, 0, len(byKey))
	for s := range byKey {
		names = append(names, s)
	}
	sort.Strings(names)

	keys := make([]Key, len(names))
	for i, s := range names {
		keys[i] = byKey[s]
	}
	return Index{keys: keys, byKey: byKey}
}

// Len returns the number of keys.
func (ix Index) Len() int { return len(ix.keys) }

// Keys returns the keys in order.
func (ix Index) Keys() []Key {
	out := make([]Key, len(ix.keys))
	copy(out, ix.keys)
	return out
}

// Strings returns the canonical renderings in order.
func (ix Index) Strings() []string {
	out := make([]string, len(ix.keys))
	for i, k := range ix.keys {
		out[i] = k.String()
	}
	return out
}

// Lookup resolves a canonical string to its key. Keys are matched whole,
// so a separator inside a group or country name is not ambiguous.
func (ix Index) Lookup(s string) (Key, bool) {
	k, ok := ix.byKey[s]
	return k, ok
}

// Contains reports whether k is in the index.
func (ix Index) Contains(k Key) bool {
	_, ok := ix.byKey[k.String()]
	return ok
}
