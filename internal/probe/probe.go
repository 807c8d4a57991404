// Package probe inspects CSV files offline to help match an auxiliary table
// against a main table: it infers per-column types from a sample, caches the
// result next to the file and proposes merge keys. Nothing here is used by
// the pipeline.
package probe

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"github.com/zeebo/xxh3"

	bacicsv "github.com/ihelfrich/BACI-ProcessingUtility/internal/parser/csv"
)

const (
	// DefaultMaxRows is the number of data rows sampled by Analyze.
	DefaultMaxRows = 1000
	// SampleSize is the number of values kept per column.
	SampleSize = 5

	fingerprintPrefix = 64 << 10
	cacheSuffix       = ".probe.json"
)

// Column describes one column of an analyzed file.
type Column struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Sample []string `json:"sample"`
}

// Structure is the result of Analyze.
type Structure struct {
	Path    string   `json:"path"`
	Rows    int      `json:"rows_sampled"`
	Columns []Column `json:"columns"`
}

// Names returns the column names in file order.
func (s Structure) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Analyze reads the header and up to maxRows data rows of the CSV file at
// path. Rows whose width differs from the header are skipped.
func Analyze(path string, maxRows int) (Structure, error) {
	if maxRows < 1 {
		maxRows = DefaultMaxRows
	}
	f, err := os.Open(path)
	if err != nil {
		return Structure{}, err
	}
	defer f.Close()

	st, err := analyze(f, maxRows)
	if err != nil {
		return Structure{}, fmt.Errorf("analyze %s: %w", path, err)
	}
	st.Path = path
	return st, nil
}

func analyze(r io.Reader, maxRows int) (Structure, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Structure{}, errors.New("empty file")
	}
	if err != nil {
		return Structure{}, fmt.Errorf("read header: %w", err)
	}
	hdr = bacicsv.StripHeaderBOM(slices.Clone(hdr))

	cols := make([][]string, len(hdr))
	rows := 0
	for rows < maxRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return Structure{}, fmt.Errorf("read row: %w", err)
		}
		if len(rec) != len(hdr) {
			continue
		}
		for i, v := range rec {
			cols[i] = append(cols[i], v)
		}
		rows++
	}

	st := Structure{Rows: rows, Columns: make([]Column, len(hdr))}
	for i, name := range hdr {
		sample := cols[i]
		if len(sample) > SampleSize {
			sample = sample[:SampleSize]
		}
		st.Columns[i] = Column{Name: name, Type: InferType(cols[i]), Sample: slices.Clone(sample)}
		if st.Columns[i].Sample == nil {
			st.Columns[i].Sample = []string{}
		}
	}
	return st, nil
}

type cacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	MaxRows     int       `json:"max_rows"`
	Structure   Structure `json:"structure"`
}

// CacheKey returns the fingerprint of the file at path: an xxh3 hash of its
// size, modification time and first 64 KiB.
func CacheKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return "", err
	}

	h := xxh3.New()
	var meta [16]byte
	binary.LittleEndian.PutUint64(meta[:8], uint64(fi.Size()))
	binary.LittleEndian.PutUint64(meta[8:], uint64(fi.ModTime().UnixNano()))
	h.Write(meta[:])
	if _, err := io.CopyN(h, f, fingerprintPrefix); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// CachePath returns where CachedAnalyze stores the result for path.
func CachePath(path string) string { return path + cacheSuffix }

// CachedAnalyze returns the cached Structure for path when its fingerprint
// and maxRows still match, and otherwise runs Analyze and refreshes the
// cache. Failing to write the cache is not an error.
func CachedAnalyze(path string, maxRows int) (Structure, bool, error) {
	if maxRows < 1 {
		maxRows = DefaultMaxRows
	}
	key, err := CacheKey(path)
	if err != nil {
		return Structure{}, false, err
	}

	if raw, err := os.ReadFile(CachePath(path)); err == nil {
		var ce cacheEntry
		if json.Unmarshal(raw, &ce) == nil && ce.Fingerprint == key && ce.MaxRows == maxRows {
			return ce.Structure, true, nil
		}
	}

	st, err := Analyze(path, maxRows)
	if err != nil {
		return Structure{}, false, err
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(cacheEntry{Fingerprint: key, MaxRows: maxRows, Structure: st}); err == nil {
		_ = os.WriteFile(CachePath(path), buf.Bytes(), 0o644)
	}
	return st, false, nil
}

// Rename pairs a main column with an auxiliary column that likely holds
// the same key.
type Rename struct {
	Main   string `json:"main"`
	Aux    string `json:"aux"`
	Reason string `json:"reason"`
}

// Rename reasons.
const (
	ReasonSameName   = "normalized_name"
	ReasonSameValues = "same_type_and_sample"
)

// FindMergeKeys compares two structures. common holds the column names
// present in both, sorted. renames holds differently named pairs that either
// normalize to the same identifier ("Country Code" and "country_code") or
// share a type and an identical non-empty sample.
func FindMergeKeys(main, aux Structure) (common []string, renames []Rename) {
	auxByName := make(map[string]Column, len(aux.Columns))
	for _, c := range aux.Columns {
		auxByName[c.Name] = c
	}
	for _, c := range main.Columns {
		if _, ok := auxByName[c.Name]; ok {
			common = append(common, c.Name)
		}
	}
	sort.Strings(common)
	common = slices.Compact(common)

	for _, m := range main.Columns {
		for _, a := range aux.Columns {
			if m.Name == a.Name {
				continue
			}
			switch {
			case NormalizeName(m.Name) == NormalizeName(a.Name):
				renames = append(renames, Rename{Main: m.Name, Aux: a.Name, Reason: ReasonSameName})
			case m.Type == a.Type && len(m.Sample) > 0 && slices.Equal(m.Sample, a.Sample):
				renames = append(renames, Rename{Main: m.Name, Aux: a.Name, Reason: ReasonSameValues})
			}
		}
	}
	return common, renames
}
