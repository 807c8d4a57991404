// Package config defines the JSON-serializable configuration of a BACI
// merge run.
//
// A run file looks like:
//
//	{
//	  "job": "baci",
//	  "input_dir": "data/BACI_HS92_V202401b",
//	  "output_file": "out/merged.parquet",
//	  "format": "parquet",
//	  "sampling": { "enabled": true, "fraction": 0.01, "seed": 42 },
//	  "runtime":  { "workers": 8, "chunk_size": 100000 },
//	  "storage":  { "dsn": "", "table": "trade_flows" }
//	}
//
// Missing fields keep the values from Defaults. Environment variables with
// the BACI_ prefix override the file (see ApplyEnv).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	DefaultJob        = "baci"
	DefaultFraction   = 0.01
	DefaultSeed       = 42
	DefaultChunkSize  = 100_000
	DefaultTopN       = 10
	DefaultTable      = "trade_flows"
	DefaultBatchSize  = 10_000
	DefaultFormat     = FormatParquet
	DefaultPushURL    = "http://localhost:9091"
	DefaultDatadogURL = "127.0.0.1:8125"
)

// Run is the full configuration of one pipeline run.
type Run struct {
	// Job labels metrics and log lines.
	Job string `json:"job"`

	// InputDir is scanned (non-recursively) for *.csv files.
	InputDir string `json:"input_dir"`

	// OutputFile determines the base name of every artifact: the extension
	// is replaced per artifact (<base>.parquet, <base>_summary.json, ...).
	OutputFile string `json:"output_file"`

	// Format selects the data sink. See Formats.
	Format string `json:"format"`

	Sampling Sampling `json:"sampling"`
	Runtime  Runtime  `json:"runtime"`
	Summary  Summary  `json:"summary"`
	Storage  Storage  `json:"storage"`
	Publish  Publish  `json:"publish"`
	Metrics  Metrics  `json:"metrics"`
}

// Sampling configures the stratified sampler.
type Sampling struct {
	Enabled  bool    `json:"enabled"`
	Fraction float64 `json:"fraction"`
	Seed     uint64  `json:"seed"`
}

// Runtime controls concurrency and memory bounds.
type Runtime struct {
	// Workers is the number of files processed concurrently.
	Workers int `json:"workers"`
	// ChunkSize is the maximum number of rows held per batch.
	ChunkSize int `json:"chunk_size"`
}

// Summary configures the summary aggregator.
type Summary struct {
	TopN int `json:"top_n"`
}

// Storage configures the database sinks (sqlite, postgres).
type Storage struct {
	// DSN is the connection string. For sqlite it defaults to <base>.db.
	DSN string `json:"dsn"`
	// Table is the destination table name.
	Table string `json:"table"`
	// BatchSize is the number of rows per insert/COPY batch.
	BatchSize int `json:"batch_size"`
}

// Publish configures optional upload of the produced artifacts.
type Publish struct {
	S3 S3 `json:"s3"`
}

// S3 holds connection settings for an S3-compatible object store. Upload is
// disabled while Bucket is empty.
type S3 struct {
	Endpoint       string `json:"endpoint"`
	Region         string `json:"region"`
	Bucket         string `json:"bucket"`
	Prefix         string `json:"prefix"`
	AccessKey      string `json:"access_key"`
	SecretKey      string `json:"secret_key"`
	UseSSL         bool   `json:"use_ssl"`
	ForcePathStyle bool   `json:"force_path_style"`
}

// Enabled reports whether publishing is configured.
func (s S3) Enabled() bool { return strings.TrimSpace(s.Bucket) != "" }

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is one of "none", "pushgateway", "datadog".
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
}

// Defaults returns a Run with every field populated.
func Defaults() Run {
	return Run{
		Job:    DefaultJob,
		Format: string(DefaultFormat),
		Sampling: Sampling{
			Enabled:  true,
			Fraction: DefaultFraction,
			Seed:     DefaultSeed,
		},
		Runtime: Runtime{
			Workers:   runtime.NumCPU(),
			ChunkSize: DefaultChunkSize,
		},
		Summary: Summary{TopN: DefaultTopN},
		Storage: Storage{
			Table:     DefaultTable,
			BatchSize: DefaultBatchSize,
		},
		Metrics: Metrics{
			Backend:        "none",
			PushgatewayURL: DefaultPushURL,
			DatadogAddr:    DefaultDatadogURL,
		},
	}
}

// Load decodes the JSON run file at path on top of Defaults. An empty path
// returns Defaults unchanged. Environment overrides are not applied; call
// ApplyEnv afterwards.
func Load(path string) (Run, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// BasePath returns OutputFile without its extension. Every artifact name is
// derived from it.
func (r Run) BasePath() string {
	return strings.TrimSuffix(r.OutputFile, filepath.Ext(r.OutputFile))
}

// SQLiteDSN returns the configured DSN or <base>.db.
func (r Run) SQLiteDSN() string {
	if strings.TrimSpace(r.Storage.DSN) != "" {
		return r.Storage.DSN
	}
	return r.BasePath() + ".db"
}
