// Package errs defines the error taxonomy of a pipeline run.
//
// Every failure that crosses a component boundary is an *Error carrying a
// Kind. Callers branch on the kind with errors.Is against the sentinel
// values, or with KindOf:
//
//	if errors.Is(err, errs.ErrNoDataProcessed) { ... }
//
// Fatal kinds abort the run. KindPerFileProcessing is the only recoverable
// kind; the coordinator collects those instead of returning them.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingReferenceData
	KindNoMainFilesFound
	KindPerFileProcessing
	KindNoDataProcessed
	KindUnsupportedOutputFormat
	KindDuplicateReferenceKey
)

func (k Kind) String() string {
	switch k {
	case KindMissingReferenceData:
		return "MissingReferenceData"
	case KindNoMainFilesFound:
		return "NoMainFilesFound"
	case KindPerFileProcessing:
		return "PerFileProcessingError"
	case KindNoDataProcessed:
		return "NoDataProcessed"
	case KindUnsupportedOutputFormat:
		return "UnsupportedOutputFormat"
	case KindDuplicateReferenceKey:
		return "DuplicateReferenceKey"
	default:
		return "Unknown"
	}
}

// Fatal reports whether an error of this kind aborts the whole run.
func (k Kind) Fatal() bool { return k != KindPerFileProcessing }

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrMissingReferenceData    = &Error{Kind: KindMissingReferenceData}
	ErrNoMainFilesFound        = &Error{Kind: KindNoMainFilesFound}
	ErrPerFileProcessing       = &Error{Kind: KindPerFileProcessing}
	ErrNoDataProcessed         = &Error{Kind: KindNoDataProcessed}
	ErrUnsupportedOutputFormat = &Error{Kind: KindUnsupportedOutputFormat}
	ErrDuplicateReferenceKey   = &Error{Kind: KindDuplicateReferenceKey}
)

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string // e.g. "discover", "load countries", "process file"
	Path string // file or directory the error relates to, if any
	Err  error
}

// New returns an *Error of kind k.
func New(k Kind, op, path string, err error) *Error {
	return &Error{Kind: k, Op: op, Path: path, Err: err}
}

// Errorf is New with a formatted cause.
func Errorf(k Kind, op, path, format string, a ...any) *Error {
	return New(k, op, path, fmt.Errorf(format, a...))
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
