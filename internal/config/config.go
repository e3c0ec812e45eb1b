// Package config is the run configuration of the three pipelines. Values
// are layered with koanf: struct defaults, then an optional YAML file, then
// ETL_-prefixed environment variables, where "__" separates nesting levels
// (ETL_OLAP__DSN sets olap.dsn).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ETL_"
	// PathEnvVar names the config file when --config is not given.
	PathEnvVar = "ETL_CONFIG"
)

// DefaultPaths are searched in order when no config path is given.
var DefaultPaths = []string{"gpetl.yaml", "gpetl.yml", "/etc/gpetl/config.yaml"}

// Config is the complete run configuration.
type Config struct {
	// Job labels logs and metrics.
	Job       string          `koanf:"job"`
	Source    SourceConfig    `koanf:"source"`
	OLAP      OLAPConfig      `koanf:"olap"`
	Documents DocumentsConfig `koanf:"documents"`
	Report    ReportConfig    `koanf:"report"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
}

// SourceConfig selects a relational store to read from.
type SourceConfig struct {
	// Kind is mysql, postgres, sqlite, mssql or duckdb.
	Kind string `koanf:"kind"`
	DSN  string `koanf:"dsn"`
	// Queries overrides named queries by name.
	Queries map[string]string `koanf:"queries"`
}

// TableNames are the analytical table names.
type TableNames struct {
	Fact     string `koanf:"fact"`
	Practice string `koanf:"practice"`
	Patient  string `koanf:"patient"`
}

// OLAPConfig is the star-schema sink.
type OLAPConfig struct {
	Kind      string     `koanf:"kind"`
	DSN       string     `koanf:"dsn"`
	Strategy  string     `koanf:"strategy"`
	BatchSize int        `koanf:"batch_size"`
	Tables    TableNames `koanf:"tables"`
}

// DocumentsConfig is the document sink.
type DocumentsConfig struct {
	// Kind is mongo, badger or redis.
	Kind       string `koanf:"kind"`
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Strategy   string `koanf:"strategy"`
	// ConflictPolicy is keep-first, keep-last or error.
	ConflictPolicy string `koanf:"conflict_policy"`
}

// ReportConfig drives the aggregation reader and renderers.
type ReportConfig struct {
	// Source defaults to the OLAP sink when Kind is empty.
	Source     SourceConfig `koanf:"source"`
	Categories []int64      `koanf:"categories"`
	XLSX       string       `koanf:"xlsx"`
	PDF        string       `koanf:"pdf"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is none, prometheus or datadog.
	Backend        string   `koanf:"backend"`
	PushgatewayURL string   `koanf:"pushgateway_url"`
	DatadogAddr    string   `koanf:"datadog_addr"`
	Namespace      string   `koanf:"namespace"`
	Tags           []string `koanf:"tags"`
}

// LoggingConfig is passed to logging.Init.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RuntimeConfig tunes the all command.
type RuntimeConfig struct {
	// Parallel runs the olap and documents pipelines concurrently.
	Parallel bool `koanf:"parallel"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Job:    "gpetl",
		Source: SourceConfig{Kind: "mysql"},
		OLAP: OLAPConfig{
			Kind:      "postgres",
			Strategy:  "replace",
			BatchSize: 1000,
			Tables: TableNames{
				Fact:     "fact_pat_gp",
				Practice: "dim_gp_practice",
				Patient:  "dim_patient",
			},
		},
		Documents: DocumentsConfig{
			Kind:           "mongo",
			Database:       "gp_practice",
			Collection:     "HF",
			Strategy:       "replace",
			ConflictPolicy: "keep-first",
		},
		Report: ReportConfig{
			Categories: []int64{1, 2, 3, 4, 5},
			XLSX:       "tec_deprivation_report.xlsx",
			PDF:        "tec_deprivation_report.pdf",
		},
		Metrics: MetricsConfig{Backend: "none", Namespace: "gpetl."},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// ReportSource is the store the report reads, falling back to the OLAP sink.
func (c Config) ReportSource() SourceConfig {
	if strings.TrimSpace(c.Report.Source.Kind) != "" {
		return c.Report.Source
	}
	return SourceConfig{Kind: c.OLAP.Kind, DSN: c.OLAP.DSN, Queries: c.Report.Source.Queries}
}

// Load layers defaults, the YAML file at path and the environment. An empty
// path falls back to $ETL_CONFIG and then DefaultPaths; a missing default
// file is not an error, a missing explicit one is.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize trims and lowercases the backend kinds, which the storage,
// document and source registries look up verbatim.
func (c *Config) Normalize() {
	for _, k := range []*string{
		&c.Source.Kind,
		&c.OLAP.Kind,
		&c.Documents.Kind,
		&c.Report.Source.Kind,
		&c.Metrics.Backend,
	} {
		*k = strings.ToLower(strings.TrimSpace(*k))
	}
}

// envKey maps ETL_OLAP__BATCH_SIZE to olap.batch_size. The config path
// variable itself is not a setting.
func envKey(s string) string {
	if s == PathEnvVar {
		return ""
	}
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
