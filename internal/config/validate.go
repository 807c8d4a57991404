package config

import (
	"fmt"
	"runtime"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "sampling.fraction").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over r without mutating it.
func Validate(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.InputDir) == "" {
		issues = append(issues, Issue{SeverityError, "input_dir", "input_dir must not be empty"})
	}
	if strings.TrimSpace(r.OutputFile) == "" {
		issues = append(issues, Issue{SeverityError, "output_file", "output_file must not be empty"})
	}
	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{SeverityWarning, "job", "job is empty; metrics will be unlabeled"})
	}

	format, err := ParseFormat(r.Format)
	if err != nil {
		issues = append(issues, Issue{SeverityError, "format", err.Error()})
	}

	issues = append(issues, validateSampling(r.Sampling)...)
	issues = append(issues, validateRuntime(r.Runtime)...)

	if r.Summary.TopN < 1 {
		issues = append(issues, Issue{SeverityError, "summary.top_n", "summary.top_n must be >= 1"})
	}

	switch format {
	case FormatPostgres:
		if strings.TrimSpace(r.Storage.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "storage.dsn", "storage.dsn is required for format postgres"})
		}
		fallthrough
	case FormatSQLite:
		if strings.TrimSpace(r.Storage.Table) == "" {
			issues = append(issues, Issue{SeverityError, "storage.table", "storage.table must not be empty"})
		}
		if r.Storage.BatchSize < 1 {
			issues = append(issues, Issue{SeverityError, "storage.batch_size", "storage.batch_size must be >= 1"})
		}
	}

	if r.Publish.S3.Enabled() && strings.TrimSpace(r.Publish.S3.Region) == "" {
		issues = append(issues, Issue{SeverityError, "publish.s3.region", "publish.s3.region is required when a bucket is set"})
	}

	switch strings.ToLower(r.Metrics.Backend) {
	case "", "none", "pushgateway", "datadog":
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", r.Metrics.Backend)})
	}

	return issues
}

func validateSampling(s Sampling) []Issue {
	var issues []Issue
	if s.Fraction <= 0 || s.Fraction > 1 {
		sev := SeverityError
		if !s.Enabled {
			sev = SeverityWarning
		}
		issues = append(issues, Issue{sev, "sampling.fraction",
			fmt.Sprintf("sampling.fraction must be in (0, 1], got %v", s.Fraction)})
	} else if !s.Enabled && s.Fraction != DefaultFraction {
		issues = append(issues, Issue{SeverityWarning, "sampling.fraction",
			"sampling is disabled; sampling.fraction is ignored"})
	}
	return issues
}

func validateRuntime(rt Runtime) []Issue {
	var issues []Issue
	if rt.Workers < 1 {
		issues = append(issues, Issue{SeverityError, "runtime.workers", "runtime.workers must be >= 1"})
	} else if rt.Workers > 4*runtime.NumCPU() {
		issues = append(issues, Issue{SeverityWarning, "runtime.workers",
			fmt.Sprintf("runtime.workers=%d is far above available parallelism (%d)", rt.Workers, runtime.NumCPU())})
	}
	if rt.ChunkSize < 1 {
		issues = append(issues, Issue{SeverityError, "runtime.chunk_size", "runtime.chunk_size must be >= 1"})
	}
	return issues
}
