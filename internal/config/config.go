// Package config defines service configuration and its loading.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers defaults, an optional .env file, an optional YAML file and
//   DEBTLENS_ environment variables, in that order.
// - Errors are wrapped with this package's sentinels.
package config

// Columns names the source columns of the panel.
type Columns struct {
	Year      string `koanf:"year"`
	Continent string `koanf:"continent"`
	Subregion string `koanf:"subregion"`
	Country   string `koanf:"country"`
	Rating    string `koanf:"rating"`
	Metric    string `koanf:"metric"`
}

// VirtualGroup declares a group resolved from another group's label.
type VirtualGroup struct {
	Base       string `koanf:"base"`
	Complement bool   `koanf:"complement"`
}

// Metrics configures the Prometheus collectors.
type Metrics struct {
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	// Buckets are the latency histogram bounds in milliseconds; empty keeps
	// the built-in set.
	Buckets     []float64         `koanf:"buckets"`
	ConstLabels map[string]string `koanf:"const_labels"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DataPath is the CSV or XLSX panel to load.
	DataPath string `koanf:"data_path"`

	// Sheet names the worksheet of an XLSX panel; empty means the first.
	Sheet string `koanf:"sheet"`

	// GroupField is "continent" or "subregion".
	GroupField string `koanf:"group_field"`

	// SnapshotYear is the initial year of the rating comparison.
	SnapshotYear int `koanf:"snapshot_year"`

	// SeriesFrom and SeriesTo bound the initial country series window.
	SeriesFrom int `koanf:"series_from"`
	SeriesTo   int `koanf:"series_to"`

	// DefaultGroups is the initial comparison selection.
	DefaultGroups []string `koanf:"default_groups"`

	// VirtualGroups maps a group name to its base/complement declaration.
	VirtualGroups map[string]VirtualGroup `koanf:"virtual_groups"`

	// Columns overrides the panel's column names.
	Columns Columns `koanf:"columns"`

	// Metrics names and labels the exported collectors.
	Metrics Metrics `koanf:"metrics"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":9080",
		DataPath:      "data/final_gdf.csv",
		GroupField:    "continent",
		SnapshotYear:  2022,
		SeriesFrom:    2012,
		SeriesTo:      2022,
		DefaultGroups: []string{"Africa"},
		VirtualGroups: map[string]VirtualGroup{
			"Non-Africa": {Base: "Africa", Complement: true},
		},
		Columns: Columns{
			Year:      "Year",
			Continent: "CONTINENT",
			Subregion: "SUBREGION",
			Country:   "Country Name",
			Rating:    "Average Credit Rating",
			Metric:    "Interest payments on external debt (% of GNI)",
		},
		Metrics: Metrics{
			Namespace: "debtlens",
			Subsystem: "engine",
		},
	}
}
