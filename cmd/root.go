package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/okian/debtlens/internal/app"
	"github.com/okian/debtlens/internal/config"
	"github.com/okian/debtlens/internal/domain/aggregation"
	"github.com/okian/debtlens/internal/domain/model"
	"github.com/okian/debtlens/internal/domain/normalize"
	"github.com/okian/debtlens/pkg/logger"
	"github.com/okian/debtlens/pkg/metrics"
)

var (
	// Global flags
	configFile string
	dataPath   string
	sheet      string
	groupField string
	logFormat  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "debtlens",
	Short: "Credit rating vs. external debt interest explorer",
	Long: `debtlens compares mean interest payments on external debt (% of GNI)
across credit rating notches for groups of countries, and extracts per-country
time series.

Examples:
  debtlens serve
  debtlens selections --data panel.xlsx --sheet Panel
  debtlens compare --year 2022 --group Africa --group Non-Africa
  debtlens series --key "Africa - Kenya" --from 2012 --to 2022`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides "+config.EnvConfig+")")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "CSV or XLSX panel (overrides data_path)")
	rootCmd.PersistentFlags().StringVar(&sheet, "sheet", "", "worksheet of an XLSX panel")
	rootCmd.PersistentFlags().StringVar(&groupField, "field", "", "grouping field: continent or subregion")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(serveCmd, selectionsCmd, compareCmd, seriesCmd)
}

// loadConfig loads configuration and applies command line overrides.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if configFile != "" {
		if err := os.Setenv(config.EnvConfig, configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if sheet != "" {
		cfg.Sheet = sheet
	}
	if groupField != "" {
		cfg.GroupField = groupField
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging initializes the global logger on stderr, leaving stdout to
// command output.
func setupLogging(ctx context.Context, cfg *config.Config) (logger.Logger, error) {
	if err := logger.InitWith(os.Stderr, logger.Format(strings.ToLower(cfg.LogFormat))); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	l := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return l, nil
}

// newService builds the application service from configuration.
func newService(cfg *config.Config, l logger.Logger) (*app.Service, error) {
	field, err := model.ParseGroupField(cfg.GroupField)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	virtual := make(aggregation.Definitions, len(cfg.VirtualGroups))
	for name, vg := range cfg.VirtualGroups {
		virtual[name] = aggregation.VirtualGroup{Base: vg.Base, Complement: vg.Complement}
	}

	return app.New(
		app.WithLogger(l.Named("service")),
		app.WithDataPath(cfg.DataPath, cfg.Sheet),
		app.WithGroupField(field),
		app.WithColumns(normalize.Columns(cfg.Columns)),
		app.WithVirtualGroups(virtual),
		app.WithDefaultGroups(cfg.DefaultGroups),
		app.WithSnapshotYear(cfg.SnapshotYear),
		app.WithSeriesWindow(cfg.SeriesFrom, cfg.SeriesTo),
	), nil
}

// setupMetrics names the collectors before the service records anything.
func setupMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithSubsystem(cfg.Metrics.Subsystem),
		metrics.WithHistogramBuckets(cfg.Metrics.Buckets),
		metrics.WithConstLabels(cfg.Metrics.ConstLabels),
	)
}

// bootstrap loads config, logging and a started service.
func bootstrap(ctx context.Context) (*config.Config, logger.Logger, *app.Service, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	l, err := setupLogging(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	setupMetrics(cfg)
	svc, err := newService(cfg, l)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := svc.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to start service: %w", err)
	}
	return cfg, l, svc, nil
}
