// Package writer persists the products of a run: the merged dataset in one
// of the supported formats, the summary report and the run metadata.
//
// Every artifact name derives from a base path (the configured output file
// without its extension): <base>.parquet, <base>_summary.json, and so on.
package writer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/config"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
)

// DefaultRecordBatch is the number of rows per Arrow record batch.
const DefaultRecordBatch = 64 * 1024

// Sink writes the merged dataset.
type Sink interface {
	// Write persists records in domain.Columns order and returns where they
	// went: a file path, or "postgres:<table>" for the postgres sink.
	Write(ctx context.Context, records []domain.EnrichedRecord) (string, error)
}

// Options configures the sinks built by New.
type Options struct {
	// BasePath is the output path without extension.
	BasePath string
	// Storage configures the database sinks.
	Storage config.Storage
	// RecordBatch is the Arrow record batch size (parquet, feather).
	RecordBatch int
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RecordBatch < 1 {
		o.RecordBatch = DefaultRecordBatch
	}
	if o.Storage.BatchSize < 1 {
		o.Storage.BatchSize = config.DefaultBatchSize
	}
	if o.Storage.Table == "" {
		o.Storage.Table = config.DefaultTable
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// New returns the sink for format. Unknown formats yield an
// errs.KindUnsupportedOutputFormat error.
func New(format config.Format, opts Options) (Sink, error) {
	opts = opts.withDefaults()
	path := opts.BasePath + format.Extension()
	switch format {
	case config.FormatCSV:
		return &csvSink{path: path}, nil
	case config.FormatJSONL:
		return &jsonlSink{path: path}, nil
	case config.FormatParquet:
		return &parquetSink{path: path, batch: opts.RecordBatch}, nil
	case config.FormatFeather:
		return &featherSink{path: path, batch: opts.RecordBatch}, nil
	case config.FormatSQLite:
		dsn := opts.Storage.DSN
		if dsn == "" {
			dsn = path
		}
		return &sqliteSink{dsn: dsn, opts: opts}, nil
	case config.FormatPostgres:
		return &postgresSink{opts: opts}, nil
	default:
		return nil, errs.Errorf(errs.KindUnsupportedOutputFormat, "new sink", "",
			"unsupported file format %q", string(format))
	}
}

// writeFile writes path through fn. Data goes to a temporary file in the
// same directory which is renamed over path only when fn succeeds, so a
// failed write never leaves a truncated artifact behind.
func writeFile(path string, fn func(w io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err := fn(bw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	// CreateTemp uses 0600.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
