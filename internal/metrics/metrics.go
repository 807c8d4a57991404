// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a merge run.
//
//   - Backend is the narrow interface concrete systems implement: counters,
//     histogram-style observations, and a Flush at the end of a run.
//   - Recorder binds a Backend to a job name and is passed explicitly to the
//     components that record. A nil *Recorder is valid and records nothing.
//
// Concrete systems live in subpackages (prompush, datadog) so the pipeline
// depends only on this package.
package metrics

import (
	"context"
	"errors"
	"time"
)

// Metric names.
const (
	StepTotal       = "baci_step_total"
	StepDuration    = "baci_step_duration_seconds"
	RecordsTotal    = "baci_records_total"
	FilesTotal      = "baci_files_total"
	ChunkDurationMs = "baci_chunk_duration_ms"
)

// Row kinds accepted by RecordRows.
const (
	RowsRead     = "read"
	RowsEnriched = "enriched"
	RowsSampled  = "sampled"
	RowsWritten  = "written"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// Recorder records pipeline metrics for one job. Methods are safe for
// concurrent use when the backend is.
type Recorder struct {
	job     string
	backend Backend
}

// NewRecorder binds b to job. A nil b records nothing.
func NewRecorder(job string, b Backend) *Recorder {
	if b == nil {
		b = Nop{}
	}
	return &Recorder{job: job, backend: b}
}

// Job returns the job label.
func (r *Recorder) Job() string {
	if r == nil {
		return ""
	}
	return r.job
}

// RecordStep counts one execution of a named step and observes its duration,
// labelled success or failure.
func (r *Recorder) RecordStep(step string, err error, d time.Duration) {
	if r == nil {
		return
	}
	lbls := Labels{"job": r.job, "step": step, "status": status(err)}
	r.backend.IncCounter(StepTotal, 1, lbls)
	r.backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds n to the row counter of kind (RowsRead, RowsEnriched,
// RowsSampled, RowsWritten). Non-positive n is ignored.
func (r *Recorder) RecordRows(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.backend.IncCounter(RecordsTotal, float64(n), Labels{"job": r.job, "kind": kind})
}

// RecordFile counts one finished main file.
func (r *Recorder) RecordFile(err error) {
	if r == nil {
		return
	}
	r.backend.IncCounter(FilesTotal, 1, Labels{"job": r.job, "status": status(err)})
}

// RecordChunk observes the time spent on one chunk (read, join, sample).
func (r *Recorder) RecordChunk(d time.Duration) {
	if r == nil {
		return
	}
	r.backend.ObserveHistogram(ChunkDurationMs, float64(d.Microseconds())/1000, Labels{"job": r.job})
}

// Flush delegates to the backend.
func (r *Recorder) Flush() error {
	if r == nil {
		return nil
	}
	return r.backend.Flush()
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "failure"
	}
}
