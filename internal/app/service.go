// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/debtlens/internal/adapters/repository"
	"github.com/okian/debtlens/internal/adapters/source"
	"github.com/okian/debtlens/internal/domain/aggregation"
	"github.com/okian/debtlens/internal/domain/model"
	"github.com/okian/debtlens/internal/domain/normalize"
	"github.com/okian/debtlens/internal/domain/timeseries"
	"github.com/okian/debtlens/internal/domain/view"
	"github.com/okian/debtlens/pkg/logger"
	"github.com/okian/debtlens/pkg/metrics"
)

// Service loads the panel and answers comparison and series queries.
type Service struct {
	mu       sync.RWMutex
	reloadMu sync.Mutex // serializes publish and controller swap

	// Core components
	src        source.Source
	store      *repository.Store
	normalizer *normalize.Normalizer
	agg        *aggregation.Aggregator
	view       *view.Controller

	// Configuration
	dataPath      string
	sheet         string
	field         model.GroupField
	columns       normalize.Columns
	virtual       aggregation.Definitions
	defaultGroups []string
	snapshotYear  int
	seriesFrom    int
	seriesTo      int

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDataPath sets the panel file and, for spreadsheets, its sheet.
func WithDataPath(path, sheet string) Option {
	return func(s *Service) {
		s.dataPath = path
		s.sheet = sheet
	}
}

// WithSource sets the row source directly, bypassing WithDataPath.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.src = src
		}
	}
}

// WithGroupField sets the grouping granularity.
func WithGroupField(f model.GroupField) Option {
	return func(s *Service) {
		s.field = f
	}
}

// WithColumns overrides the panel column names.
func WithColumns(c normalize.Columns) Option {
	return func(s *Service) {
		s.columns = c
	}
}

// WithVirtualGroups replaces the virtual group table.
func WithVirtualGroups(d aggregation.Definitions) Option {
	return func(s *Service) {
		if d != nil {
			s.virtual = d
		}
	}
}

// WithDefaultGroups sets the initial comparison selection.
func WithDefaultGroups(groups []string) Option {
	return func(s *Service) {
		if groups != nil {
			s.defaultGroups = groups
		}
	}
}

// WithSnapshotYear sets the initial comparison year.
func WithSnapshotYear(year int) Option {
	return func(s *Service) {
		s.snapshotYear = year
	}
}

// WithSeriesWindow sets the initial series window.
func WithSeriesWindow(from, to int) Option {
	return func(s *Service) {
		if from <= to {
			s.seriesFrom, s.seriesTo = from, to
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		store:         repository.NewStore(),
		field:         model.FieldContinent,
		columns:       normalize.DefaultColumns(),
		virtual:       aggregation.DefaultDefinitions(),
		defaultGroups: []string{"Africa"},
		snapshotYear:  view.DefaultSnapshotYear,
		seriesFrom:    view.DefaultSeriesFrom,
		seriesTo:      view.DefaultSeriesTo,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.normalizer = normalize.New(normalize.WithColumns(s.columns))
	s.agg = aggregation.New(
		aggregation.WithGroupField(s.field),
		aggregation.WithVirtualGroups(s.virtual),
	)
	s.view = view.New(
		view.WithAggregator(s.agg),
		view.WithDefaultGroups(s.defaultGroups),
		view.WithSnapshotYear(s.snapshotYear),
		view.WithWindow(s.seriesFrom, s.seriesTo),
	)
	return s
}

// Start opens the source and publishes the first snapshot.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.src == nil {
		if s.dataPath == "" {
			s.mu.Unlock()
			return ErrNoSource
		}
		src, err := source.Open(s.dataPath, s.sheet)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.src = src
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "starting debtlens service...",
		logger.String("path", s.dataPath),
		logger.String("groupField", string(s.field)),
	)
	for name := range s.virtual {
		if err := s.virtual.Validate(name); err != nil {
			s.logger.Warn(ctx, "virtual group will fail on request", logger.Error(err))
		}
	}

	if _, err := s.Reload(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// Stop marks the service stopped. Published snapshots stay readable.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "debtlens service stopped")
}

// Reload re-reads the source, publishes a new snapshot and notifies the
// view controller.
func (s *Service) Reload(ctx context.Context) (*repository.Snapshot, error) {
	s.mu.RLock()
	src := s.src
	s.mu.RUnlock()
	if src == nil {
		return nil, ErrNoSource
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	rows, err := src.Rows(ctx)
	if err != nil {
		metrics.RecordReload("error", msSince(start))
		s.log().Error(ctx, "reload failed", logger.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrReload, err)
	}

	records, warnings := s.normalizer.Normalize(rows)
	snap := s.store.Publish(s.dataPath, records, s.field, warnings)
	s.view.DataReloaded(records)

	metrics.RecordReload("success", msSince(start))
	metrics.UpdateRecordsLoaded(records.Len())
	metrics.RecordParseWarnings(len(warnings))
	metrics.UpdateSelectionIndexSize(snap.Index.Len())

	s.log().Info(ctx, "panel loaded",
		logger.String("version", snap.Version.String()),
		logger.Int("records", records.Len()),
		logger.Int("selections", snap.Index.Len()),
		logger.Int("warnings", len(warnings)),
		logger.Bool("clean", len(warnings) == 0),
		logger.Duration("took", time.Since(start)),
	)
	for i, w := range warnings {
		if i == maxLoggedWarnings {
			s.log().Debug(ctx, "further parse warnings suppressed", logger.Int("remaining", len(warnings)-i))
			break
		}
		s.log().Debug(ctx, "parse warning", logger.Error(w))
	}
	return snap, nil
}

const maxLoggedWarnings = 20

// Snapshot returns the published snapshot.
func (s *Service) Snapshot() (*repository.Snapshot, error) {
	return s.store.Current()
}

// Selections returns the sorted canonical selection keys.
func (s *Service) Selections(_ context.Context) ([]string, error) {
	snap, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	return snap.Index.Strings(), nil
}

// Aggregate compares groups for year against the current snapshot.
// Per-group failures are reported in the result, not as an error.
func (s *Service) Aggregate(ctx context.Context, year int, groups []string) (aggregation.Result, error) {
	snap, err := s.store.Current()
	if err != nil {
		return aggregation.Result{}, err
	}

	start := time.Now()
	res := s.agg.Aggregate(year, groups, snap.Records)
	metrics.RecordAggregation(msSince(start))
	for name, gerr := range res.Errors {
		metrics.RecordVirtualGroupFailure(name)
		s.log().Warn(ctx, "group aggregation failed", logger.String("group", name), logger.Error(gerr))
	}
	return res, nil
}

// Series extracts the metric series for a canonical key string.
func (s *Service) Series(ctx context.Context, key string, from, to int) (timeseries.Series, error) {
	snap, err := s.store.Current()
	if err != nil {
		return timeseries.Series{}, err
	}

	k, ok := snap.Index.Lookup(key)
	if !ok {
		metrics.RecordSelectionKeyRejected()
		return timeseries.Series{}, fmt.Errorf("%w: %q", view.ErrUnknownSelectionKey, key)
	}

	series, err := timeseries.Extract(s.field, k, from, to, snap.Records)
	if err != nil {
		return timeseries.Series{}, err
	}
	metrics.RecordSeriesExtraction(series.Empty())
	s.log().Debug(ctx, "series extracted", logger.String("key", key), logger.Int("points", len(series.Points)))
	return series, nil
}

// ViewState returns the controller's selections.
func (s *Service) ViewState() view.State {
	return s.view.State()
}

// ToggleMode switches the controller between its two modes.
func (s *Service) ToggleMode(ctx context.Context) view.Mode {
	mode := s.view.ToggleMode()
	metrics.RecordViewTransition("toggle_mode")
	s.log().Debug(ctx, "view mode changed", logger.String("mode", mode.String()))
	return mode
}

// SetGroups replaces the comparison selection.
func (s *Service) SetGroups(_ context.Context, groups []string) error {
	if err := s.view.SetGroups(groups); err != nil {
		return err
	}
	metrics.RecordViewTransition("set_groups")
	return nil
}

// SetSelectionKey selects the country series.
func (s *Service) SetSelectionKey(_ context.Context, key string) error {
	if err := s.view.SetSelectionKey(key); err != nil {
		metrics.RecordSelectionKeyRejected()
		return err
	}
	metrics.RecordViewTransition("set_key")
	return nil
}

// SetSnapshotYear changes the comparison year.
func (s *Service) SetSnapshotYear(_ context.Context, year int) {
	s.view.SetSnapshotYear(year)
	metrics.RecordViewTransition("set_year")
}

// SetWindow changes the series window.
func (s *Service) SetWindow(_ context.Context, from, to int) error {
	if err := s.view.SetWindow(from, to); err != nil {
		return err
	}
	metrics.RecordViewTransition("set_window")
	return nil
}

// ViewResult returns the controller's current result, recording metrics
// only when it had to recompute.
func (s *Service) ViewResult(ctx context.Context) (view.Result, error) {
	start := time.Now()
	res, ran, err := s.view.Evaluate()
	if ran {
		took := msSince(start)
		if res.Mode == view.ModeGroupComparison {
			metrics.RecordAggregation(took)
			if res.Comparison != nil {
				for name := range res.Comparison.Errors {
					metrics.RecordVirtualGroupFailure(name)
				}
			}
		} else if err == nil && res.Series != nil {
			metrics.RecordSeriesExtraction(res.Series.Empty())
		}
	}
	if err != nil {
		s.log().Warn(ctx, "view result failed", logger.Error(err))
		return res, err
	}
	s.log().Debug(ctx, "view result",
		logger.String("mode", res.Mode.String()),
		logger.Bool("recomputed", ran),
		logger.Float64("tookMs", msSince(start)),
	)
	return res, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs := s.view.Stats()
	stats := map[string]interface{}{
		"started":      s.started,
		"groupField":   string(s.field),
		"snapshots":    s.store.Swaps(),
		"aggregations": vs.Aggregations,
		"extractions":  vs.Extractions,
		"mode":         s.view.Mode().String(),
	}

	if snap, err := s.store.Current(); err == nil {
		stats["version"] = snap.Version.String()
		stats["loadedAt"] = snap.LoadedAt
		stats["records"] = snap.Records.Len()
		stats["selections"] = snap.Index.Len()
		stats["warnings"] = len(snap.Warnings)

		metrics.UpdateRecordsLoaded(snap.Records.Len())
		metrics.UpdateSelectionIndexSize(snap.Index.Len())
	}

	return stats
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	l := s.logger
	s.mu.RUnlock()
	if l == nil {
		return logger.Nop()
	}
	return l
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
