// Package pipeline runs the merge-and-sample pipeline over a set of BACI main
// files: every file is read in chunks, joined against the reference tables
// and sampled, on a bounded pool of workers.
//
// Run is the coordinator over already-discovered inputs; Execute is the
// full run driven by a config.Run (discovery, reference loading, summary
// and output).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/config"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/datasource/file"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/join"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/metrics"
	bacicsv "github.com/ihelfrich/BACI-ProcessingUtility/internal/parser/csv"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/reference"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/sample"
)

// Options configures Run. Zero values fall back to defaults: Workers to
// runtime.NumCPU, ChunkSize to config.DefaultChunkSize, Logger to a discard
// logger, and a disabled Sampler keeps every row.
type Options struct {
	Workers   int
	ChunkSize int
	Sampler   sample.Sampler
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Observer  Observer
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}
	if o.ChunkSize < bacicsv.MinChunkSize {
		o.ChunkSize = config.DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// FileResult describes one successfully processed main file.
type FileResult struct {
	Path     string
	RowsRead int
	RowsKept int
	Chunks   int
	Duration time.Duration
}

// FileError records a main file that failed. Err is a
// KindPerFileProcessing *errs.Error.
type FileError struct {
	Path string
	Err  error
}

// Result is the outcome of Run.
type Result struct {
	// Records is the concatenation of every successful file's output, in
	// the order the files were given. Within a file, chunk order is kept.
	Records []domain.EnrichedRecord
	// Files lists successful files in input order.
	Files []FileResult
	// Failed lists failed files in input order.
	Failed []FileError
	// Workers and ChunkSize are the values the run used after defaults
	// were applied.
	Workers   int
	ChunkSize int
}

// RowsRead sums rows read over successful files.
func (r *Result) RowsRead() int {
	n := 0
	for _, f := range r.Files {
		n += f.RowsRead
	}
	return n
}

// FailedPaths returns the paths of the failed files.
func (r *Result) FailedPaths() []string {
	out := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		out[i] = f.Path
	}
	return out
}

type fileOutcome struct {
	records []domain.EnrichedRecord
	res     FileResult
	err     error
}

// Run processes every path in main concurrently, with at most opts.Workers
// files in flight. A failing file is logged, recorded in Result.Failed and
// otherwise ignored; Run fails with KindNoDataProcessed only when no file
// succeeds.
//
// Cancelling ctx stops scheduling new files; files in flight stop at their
// next chunk boundary. Run then returns ctx.Err().
func Run(ctx context.Context, main []string, tables *reference.Tables, opts Options) (*Result, error) {
	if len(main) == 0 {
		return nil, errs.Errorf(errs.KindNoMainFilesFound, "process files", "", "no main files given")
	}
	opts = opts.withDefaults()
	log := opts.Logger
	prog := newProgress(opts.Observer, len(main))

	log.Info("pipeline: start",
		slog.Int("files", len(main)),
		slog.Int("workers", opts.Workers),
		slog.Int("chunk_size", opts.ChunkSize),
		slog.Bool("sample", opts.Sampler.Enabled),
	)

	// Each slot is written by exactly one goroutine.
	outcomes := make([]fileOutcome, len(main))

	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i, path := range main {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			recs, res, err := processFile(ctx, path, tables, opts)
			res.Duration = time.Since(start)
			opts.Metrics.RecordFile(err)

			if err != nil {
				err = errs.New(errs.KindPerFileProcessing, "process file", path, err)
				log.Error("pipeline: file failed",
					slog.String("file", path),
					slog.String("error", err.Error()),
				)
				prog.finish(fmt.Sprintf("Error processing %s: %v", filepath.Base(path), err))
			} else {
				log.Info("pipeline: file done",
					slog.String("file", path),
					slog.Int("rows_read", res.RowsRead),
					slog.Int("rows_kept", res.RowsKept),
					slog.Int("chunks", res.Chunks),
					slog.Duration("took", res.Duration),
				)
				prog.finish(fmt.Sprintf("Processed %s: %s rows read, %s kept",
					filepath.Base(path), humanize.Comma(int64(res.RowsRead)), humanize.Comma(int64(res.RowsKept))))
			}
			outcomes[i] = fileOutcome{records: recs, res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Result{Workers: opts.Workers, ChunkSize: opts.ChunkSize}
	total := 0
	for _, o := range outcomes {
		if o.err == nil {
			total += len(o.records)
		}
	}
	out.Records = make([]domain.EnrichedRecord, 0, total)

	var causes []error
	for i, o := range outcomes {
		if o.err != nil {
			out.Failed = append(out.Failed, FileError{Path: main[i], Err: o.err})
			causes = append(causes, o.err)
			continue
		}
		out.Records = append(out.Records, o.records...)
		out.Files = append(out.Files, o.res)
	}

	if len(out.Files) == 0 {
		return out, errs.New(errs.KindNoDataProcessed, "process files", "",
			fmt.Errorf("all %d main files failed: %w", len(main), errors.Join(causes...)))
	}

	log.Info("pipeline: done",
		slog.Int("files_ok", len(out.Files)),
		slog.Int("files_failed", len(out.Failed)),
		slog.Int("rows", len(out.Records)),
	)
	return out, nil
}

// processFile runs read → join → sample over one file. Any error, including
// a panic, discards the file's partial output.
func processFile(ctx context.Context, path string, tables *reference.Tables, opts Options) (recs []domain.EnrichedRecord, res FileResult, err error) {
	res.Path = path
	defer func() {
		if r := recover(); r != nil {
			opts.Logger.Error("pipeline: panic in file task",
				slog.String("file", path),
				slog.String("stack", string(debug.Stack())),
			)
			recs = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, res, err
	}
	defer rc.Close()

	cr, err := bacicsv.NewChunkReader(rc, opts.ChunkSize)
	if err != nil {
		return nil, res, err
	}

	name := filepath.Base(path)
	for chunk := 0; ; chunk++ {
		start := time.Now()
		batch, err := cr.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, res, err
		}

		enriched := join.Enrich(batch, tables)
		kept := opts.Sampler.Apply(fmt.Sprintf("%s#%d", name, chunk), enriched)
		recs = append(recs, kept...)

		res.Chunks++
		res.RowsRead += len(batch)
		res.RowsKept += len(kept)

		opts.Metrics.RecordRows(metrics.RowsRead, len(batch))
		opts.Metrics.RecordRows(metrics.RowsEnriched, len(enriched))
		opts.Metrics.RecordRows(metrics.RowsSampled, len(kept))
		opts.Metrics.RecordChunk(time.Since(start))

		opts.Logger.Debug("pipeline: chunk",
			slog.String("file", name),
			slog.Int("chunk", chunk),
			slog.Int("rows", len(batch)),
			slog.Int("kept", len(kept)),
		)
	}
	return recs, res, nil
}
