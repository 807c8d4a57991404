package config

import (
	"strings"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
)

// Format identifies an output sink.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSONL    Format = "jsonl"
	FormatParquet  Format = "parquet"
	FormatFeather  Format = "feather"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
)

// Formats lists every supported output format. HDF5 is not among them:
// the only Go binding, gonum.org/v1/hdf5, needs cgo and a system libhdf5.
var Formats = []Format{FormatCSV, FormatJSONL, FormatParquet, FormatFeather, FormatSQLite, FormatPostgres}

// Extension returns the file extension written for f, or "" for sinks that
// do not produce a data file (postgres).
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatJSONL:
		return ".jsonl"
	case FormatParquet:
		return ".parquet"
	case FormatFeather:
		return ".feather"
	case FormatSQLite:
		return ".db"
	default:
		return ""
	}
}

// ParseFormat normalizes s ("Parquet", ".csv") and checks it against
// Formats. Unknown values yield an errs.KindUnsupportedOutputFormat error.
func ParseFormat(s string) (Format, error) {
	norm := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for _, f := range Formats {
		if string(f) == norm {
			return f, nil
		}
	}
	return "", errs.Errorf(errs.KindUnsupportedOutputFormat, "parse format", "",
		"unsupported file format %q (supported: %s)", s, formatList())
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
