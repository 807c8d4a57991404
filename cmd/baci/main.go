// Command baci merges a directory of BACI trade-flow files with the country
// and product reference tables, optionally stratified-samples the result,
// and writes the merged dataset, a summary and run metadata.
//
// Example:
//
//	baci -input data/BACI_HS92_V202401b -output out/merged.parquet -sample -fraction 0.01
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	s3blob "github.com/ihelfrich/BACI-ProcessingUtility/internal/blob/s3"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/config"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/datasource/file"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/metrics"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/metrics/datadog"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/metrics/prompush"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process globals. It returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	def := config.Defaults()
	fs := flag.NewFlagSet("baci", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath        = fs.String("config", "", "run config JSON path (optional)")
		input          = fs.String("input", "", "input directory holding BACI_HS*.csv and the reference files")
		output         = fs.String("output", "", "output file; its extension is replaced per artifact")
		format         = fs.String("format", def.Format, "output format: csv|jsonl|parquet|feather|sqlite|postgres")
		sampleOn       = fs.Bool("sample", def.Sampling.Enabled, "enable stratified sampling")
		fraction       = fs.Float64("fraction", def.Sampling.Fraction, "sampling fraction in (0, 1]")
		seed           = fs.Uint64("seed", def.Sampling.Seed, "sampling seed")
		workers        = fs.Int("workers", def.Runtime.Workers, "files processed concurrently")
		chunkSize      = fs.Int("chunk-size", def.Runtime.ChunkSize, "rows per chunk")
		filesFrom      = fs.String("files-from", "", "file listing the main files to process, one per line")
		validate       = fs.Bool("validate", false, "validate the configuration and exit")
		metricsBackend = fs.String("metrics-backend", def.Metrics.Backend, "metrics backend: none|pushgateway|datadog")
		pushURL        = fs.String("pushgateway-url", def.Metrics.PushgatewayURL, "Pushgateway base URL")
		ddAddr         = fs.String("datadog-addr", def.Metrics.DatadogAddr, "DogStatsD address")
		logFormat      = fs.String("log-format", "text", "log format: text|json")
		verbose        = fs.Bool("v", false, "enable debug logs")
	)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	config.LoadDotEnv()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "baci: %v\n", err)
		return 1
	}
	config.ApplyEnv(&cfg)

	// Explicit flags win over file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = *input
		case "output":
			cfg.OutputFile = *output
		case "format":
			cfg.Format = *format
		case "sample":
			cfg.Sampling.Enabled = *sampleOn
		case "fraction":
			cfg.Sampling.Fraction = *fraction
		case "seed":
			cfg.Sampling.Seed = *seed
		case "workers":
			cfg.Runtime.Workers = *workers
		case "chunk-size":
			cfg.Runtime.ChunkSize = *chunkSize
		case "metrics-backend":
			cfg.Metrics.Backend = *metricsBackend
		case "pushgateway-url":
			cfg.Metrics.PushgatewayURL = *pushURL
		case "datadog-addr":
			cfg.Metrics.DatadogAddr = *ddAddr
		}
	})

	log := newLogger(stderr, *logFormat, *verbose)

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "baci: configuration is invalid")
		return 1
	}
	if *validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	var mainFiles []string
	if *filesFrom != "" {
		if mainFiles, err = file.ReadList(*filesFrom); err != nil {
			fmt.Fprintf(stderr, "baci: read -files-from: %v\n", err)
			return 1
		}
	}

	rec := newRecorder(cfg, log)
	defer func() {
		if err := rec.Flush(); err != nil {
			log.Warn("metrics: flush failed", slog.String("error", err.Error()))
		}
	}()

	deps := pipeline.Deps{
		Logger:    log,
		Metrics:   rec,
		MainFiles: mainFiles,
		Observer: pipeline.ObserverFuncs{
			ProgressFunc: func(p int) { fmt.Fprintf(stdout, "progress: %d%%\n", p) },
			LogFunc:      func(msg string) { fmt.Fprintln(stdout, msg) },
		},
	}
	if cfg.Publish.S3.Enabled() {
		pub, err := s3blob.New(ctx, cfg.Publish.S3, log)
		if err != nil {
			fmt.Fprintf(stderr, "baci: %v\n", err)
			return 1
		}
		deps.Publisher = pub
	}

	md, err := pipeline.Execute(ctx, cfg, deps)
	if err != nil {
		fmt.Fprintf(stderr, "baci: %s: %v\n", errs.KindOf(err), err)
		return 1
	}

	fmt.Fprintf(stdout, "run %s: %s rows from %d files (%d failed) in %s\n",
		md.RunID, humanize.Comma(int64(md.TotalRows)), md.TotalFiles, len(md.FailedFiles),
		md.FinishedAt.Sub(md.StartedAt).Round(time.Millisecond))
	return 0
}

func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newRecorder builds the configured metrics backend. A backend that fails
// to initialize leaves metrics disabled.
func newRecorder(cfg config.Run, log *slog.Logger) *metrics.Recorder {
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(cfg.Metrics.Backend) {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  "baci.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	case "", "none":
		log.Debug("metrics: disabled")
		return metrics.NewRecorder(cfg.Job, nil)
	default:
		log.Warn("metrics: unknown backend; disabled", slog.String("backend", cfg.Metrics.Backend))
		return metrics.NewRecorder(cfg.Job, nil)
	}
	if err != nil {
		log.Warn("metrics: init failed; disabled",
			slog.String("backend", cfg.Metrics.Backend),
			slog.String("error", err.Error()),
		)
		return metrics.NewRecorder(cfg.Job, nil)
	}
	log.Info("metrics: enabled", slog.String("backend", cfg.Metrics.Backend), slog.String("job", cfg.Job))
	return metrics.NewRecorder(cfg.Job, b)
}
