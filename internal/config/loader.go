package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvPrefix  = "DEBTLENS_"
	EnvConfig  = "DEBTLENS_CONFIG"
	EnvEnvFile = "DEBTLENS_ENV_FILE"
)

const defaultEnvFile = ".env"

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. a .env file (DEBTLENS_ENV_FILE, default ".env") if present
//  3. a YAML file if DEBTLENS_CONFIG is set
//  4. env vars with prefix DEBTLENS_; a double underscore selects a nested
//     key, e.g. DEBTLENS_COLUMNS__YEAR.
func Load(_ context.Context) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "config" || key == "env_file" {
			return "", nil
		}
		key = strings.ReplaceAll(key, "__", ".")
		if key == "default_groups" || key == "metrics.buckets" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Collections given by a layer replace the defaults rather than merge.
	cfg := *New()
	if k.Exists("virtual_groups") {
		cfg.VirtualGroups = nil
	}
	if k.Exists("default_groups") {
		cfg.DefaultGroups = nil
	}
	if k.Exists("metrics.const_labels") {
		cfg.Metrics.ConstLabels = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values and cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SeriesFrom > c.SeriesTo:
		return fmt.Errorf("%w: series_from %d is after series_to %d", ErrInvalidConfig, c.SeriesFrom, c.SeriesTo)
	}
	switch strings.ToLower(c.GroupField) {
	case "continent", "subregion":
	default:
		return fmt.Errorf("%w: group_field must be continent or subregion, got %q", ErrInvalidConfig, c.GroupField)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.Metrics.Namespace == "" {
		return fmt.Errorf("%w: metrics.namespace must not be empty", ErrInvalidConfig)
	}
	for i, b := range c.Metrics.Buckets {
		if i > 0 && b <= c.Metrics.Buckets[i-1] {
			return fmt.Errorf("%w: metrics.buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	for name, vg := range c.VirtualGroups {
		if strings.TrimSpace(vg.Base) == "" {
			return fmt.Errorf("%w: virtual group %q has no base", ErrInvalidConfig, name)
		}
	}
	return nil
}

func loadEnvFile() error {
	path := os.Getenv(EnvEnvFile)
	if path == "" {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
