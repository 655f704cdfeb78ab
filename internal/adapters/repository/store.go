// Package repository holds the published, immutable record snapshot.
package repository

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/debtlens/internal/domain/model"
	"github.com/okian/debtlens/internal/domain/normalize"
	"github.com/okian/debtlens/internal/domain/selection"
)

// Snapshot is one loaded version of the panel. It is never mutated after
// publication.
type Snapshot struct {
	Version  uuid.UUID
	LoadedAt time.Time
	Source   string
	Records  model.RecordSet
	Index    selection.Index
	Warnings []normalize.ParseWarning
}

// Store publishes snapshots. Readers always see a whole snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
	swaps   atomic.Uint64
	now     func() time.Time
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock overrides the time source used for LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish builds a snapshot from records, indexes it by field and swaps it in.
func (s *Store) Publish(source string, records model.RecordSet, field model.GroupField, warnings []normalize.ParseWarning) *Snapshot {
	w := make([]normalize.ParseWarning, len(warnings))
	copy(w, warnings)
	snap := &Snapshot{
		Version:  uuid.New(),
		LoadedAt: s.now().UTC(),
		Source:   source,
		Records:  records,
		Index:    selection.Build(records, field),
		Warnings: w,
	}
	s.Swap(snap)
	return snap
}

// Swap replaces the current snapshot and returns the previous one, if any.
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	s.swaps.Add(1)
	return s.current.Swap(snap)
}

// Current returns the published snapshot or ErrNoSnapshot.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Swaps reports how many snapshots have been published.
func (s *Store) Swaps() uint64 {
	return s.swaps.Load()
}
