package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/config"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/datasource/file"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/metrics"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/reference"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/sample"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/summary"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/writer"
)

// Step names reported to metrics.
const (
	StepDiscover  = "discover"
	StepReference = "load_reference"
	StepProcess   = "process"
	StepSummarize = "summarize"
	StepWrite     = "write"
	StepPublish   = "publish"
	StepMetadata  = "metadata"
)

// Publisher uploads produced artifacts and returns their remote locations.
type Publisher interface {
	Publish(ctx context.Context, paths []string) ([]string, error)
}

// Deps carries the collaborators of Execute. Every field is optional.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Observer Observer
	// MainFiles restricts the run to these main files, by path or base
	// name. Empty means every main file of the input directory.
	MainFiles []string
	// Publisher, when set, receives every local artifact after writing.
	Publisher Publisher
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Observer == nil {
		d.Observer = ObserverFuncs{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Execute performs a full run described by cfg: discovery, reference
// loading, per-file processing, summary, output and metadata. Fatal errors
// are logged and reported to the observer as "Error: ..." before being
// returned.
func Execute(ctx context.Context, cfg config.Run, deps Deps) (md *writer.RunMetadata, err error) {
	deps = deps.withDefaults()
	log := deps.Logger
	defer func() {
		if err != nil {
			log.Error("pipeline: run failed",
				slog.String("kind", errs.KindOf(err).String()),
				slog.String("error", err.Error()),
			)
			deps.Observer.Log("Error: " + err.Error())
		}
	}()

	step := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		deps.Metrics.RecordStep(name, err, time.Since(start))
		return err
	}

	started := deps.Now()
	format, err := config.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	sampler, err := sample.New(cfg.Sampling)
	if err != nil {
		return nil, err
	}

	var inv file.Inventory
	err = step(StepDiscover, func() error {
		var err error
		inv, err = file.Discover(cfg.InputDir)
		if err != nil {
			return errs.New(errs.KindNoMainFilesFound, "discover", cfg.InputDir, err)
		}
		// Reference files are checked before main files.
		if _, _, err := reference.Locate(inv.All); err != nil {
			return err
		}
		if len(deps.MainFiles) > 0 {
			inv = inv.Restrict(deps.MainFiles)
		}
		return inv.RequireMain()
	})
	if err != nil {
		return nil, err
	}
	log.Info("pipeline: discovered",
		slog.String("dir", inv.Dir),
		slog.Int("csv_files", len(inv.All)),
		slog.Int("main_files", len(inv.Main)),
	)

	var tables *reference.Tables
	err = step(StepReference, func() error {
		var err error
		tables, err = reference.Load(ctx, inv.All)
		return err
	})
	if err != nil {
		return nil, err
	}
	countries, products := tables.Len()
	log.Info("pipeline: reference loaded", slog.Int("countries", countries), slog.Int("products", products))

	var res *Result
	err = step(StepProcess, func() error {
		var err error
		res, err = Run(ctx, inv.Main, tables, Options{
			Workers:   cfg.Runtime.Workers,
			ChunkSize: cfg.Runtime.ChunkSize,
			Sampler:   sampler,
			Logger:    log,
			Metrics:   deps.Metrics,
			Observer:  deps.Observer,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	var rep summary.Report
	_ = step(StepSummarize, func() error {
		rep = summary.Compute(res.Records, cfg.Summary.TopN)
		return nil
	})

	base := cfg.BasePath()
	var dataPath string
	var summaryPaths []string
	err = step(StepWrite, func() error {
		storage := cfg.Storage
		if format == config.FormatSQLite {
			storage.DSN = cfg.SQLiteDSN()
		}
		sink, err := writer.New(format, writer.Options{BasePath: base, Storage: storage, Logger: log})
		if err != nil {
			return err
		}
		if dataPath, err = sink.Write(ctx, res.Records); err != nil {
			return fmt.Errorf("write %s output: %w", format, err)
		}
		deps.Metrics.RecordRows(metrics.RowsWritten, len(res.Records))
		summaryPaths, err = writer.WriteSummary(base, rep)
		return err
	})
	if err != nil {
		return nil, err
	}
	outputs := append([]string{dataPath}, summaryPaths...)

	if deps.Publisher != nil {
		err = step(StepPublish, func() error {
			uris, err := deps.Publisher.Publish(ctx, localFiles(outputs))
			outputs = append(outputs, uris...)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	md = &writer.RunMetadata{
		RunID:          writer.NewRunID(),
		InputDirectory: cfg.InputDir,
		OutputFile:     cfg.OutputFile,
		FileFormat:     string(format),
		UseSample:      sampler.Enabled,
		SampleSeed:     cfg.Sampling.Seed,
		Workers:        res.Workers,
		ChunkSize:      res.ChunkSize,
		TotalRows:      len(res.Records),
		TotalFiles:     len(res.Files),
		FailedFiles:    res.FailedPaths(),
		StartedAt:      started.UTC(),
		FinishedAt:     deps.Now().UTC(),
		Outputs:        outputs,
	}
	if sampler.Enabled {
		frac := sampler.Fraction
		md.SampleFraction = &frac
	}

	var mdPath string
	err = step(StepMetadata, func() error {
		var err error
		if mdPath, err = writer.WriteMetadata(base, *md); err != nil {
			return err
		}
		if deps.Publisher != nil {
			_, err = deps.Publisher.Publish(ctx, []string{mdPath})
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: complete",
		slog.String("run_id", md.RunID),
		slog.Int("rows", md.TotalRows),
		slog.Int("files_ok", md.TotalFiles),
		slog.Int("files_failed", len(md.FailedFiles)),
		slog.Duration("took", md.FinishedAt.Sub(md.StartedAt)),
	)
	deps.Observer.Log("Data processing complete. Output saved to " + dataPath)
	deps.Observer.Log("Summary statistics saved to " + summaryPaths[0])
	deps.Observer.Log("Processing metadata saved to " + mdPath)
	return md, nil
}

// validate rejects a configuration with error-severity issues before any
// input is touched. Warnings are ignored.
func validate(cfg config.Run) error {
	var bad []error
	for _, iss := range config.Validate(cfg) {
		if iss.Severity == config.SeverityError {
			bad = append(bad, iss)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(bad...))
}

// localFiles keeps the outputs that are regular files on disk; database
// targets such as "postgres:<table>" are skipped.
func localFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			out = append(out, p)
		}
	}
	return out
}
