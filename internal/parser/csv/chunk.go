package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
)

// MinChunkSize is the smallest accepted batch size.
const MinChunkSize = 1

// Main-file column names.
const (
	ColPeriod   = "t"
	ColExporter = "i"
	ColImporter = "j"
	ColProduct  = "k"
	ColValue    = "v"
	ColQuantity = "q"
)

// ChunkReader turns a BACI main file into a lazy, finite sequence of record
// batches of at most chunkSize rows. It is not restartable and not safe for
// concurrent use.
//
// Header handling:
//   - The first line is the header; cells are trimmed, lower-cased and
//     BOM-stripped, so column order does not matter.
//   - t, i, j, k, v and q must all be present.
//
// Cell handling:
//   - q and v: empty / NA / NaN / null become 0.
//   - t, i and j must be integers; a malformed value is an error carrying
//     the line number, and the caller is expected to abandon the file.
//   - k is kept as the trimmed string, leading zeros included.
type ChunkReader struct {
	cr        *csv.Reader
	chunkSize int
	line      int
	cols      [6]int // t, i, j, k, q, v
	width     int
	done      bool
}

// NewChunkReader reads the header from r and returns a reader ready to emit
// batches. r is not closed by the ChunkReader.
func NewChunkReader(r io.Reader, chunkSize int) (*ChunkReader, error) {
	if chunkSize < MinChunkSize {
		return nil, fmt.Errorf("chunk size %d below minimum %d", chunkSize, MinChunkSize)
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // width checked per row against the header

	c := &ChunkReader{cr: cr, chunkSize: chunkSize}

	hdr, err := c.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	c.width = len(hdr)

	ix, err := Require(NormalizeHeader(hdr),
		ColPeriod, ColExporter, ColImporter, ColProduct, ColQuantity, ColValue)
	if err != nil {
		return nil, err
	}
	copy(c.cols[:], ix)
	return c, nil
}

func (c *ChunkReader) read() ([]string, error) {
	rec, err := c.cr.Read()
	if err == nil {
		c.line, _ = c.cr.FieldPos(0)
		return rec, nil
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		c.line = pe.Line
	}
	return nil, err
}

// Line returns the physical line number of the last row read (the header is
// line 1). Blank lines are counted.
func (c *ChunkReader) Line() int { return c.line }

// Next returns the next batch. After the last (possibly short) batch it
// returns nil, io.EOF. A parse error ends the sequence: further calls keep
// returning io.EOF.
func (c *ChunkReader) Next(ctx context.Context) ([]domain.TradeRecord, error) {
	if c.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := make([]domain.TradeRecord, 0, c.chunkSize)
	for len(batch) < c.chunkSize {
		rec, err := c.read()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		if err != nil {
			c.done = true
			return nil, fmt.Errorf("csv read: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		if len(rec) != c.width {
			c.done = true
			return nil, fmt.Errorf("line %d: incorrect number of fields: expected %d, got %d", c.line, c.width, len(rec))
		}

		tr, err := c.decode(rec)
		if err != nil {
			c.done = true
			return nil, fmt.Errorf("line %d: %w", c.line, err)
		}
		batch = append(batch, tr)
	}

	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (c *ChunkReader) decode(rec []string) (domain.TradeRecord, error) {
	var (
		tr  domain.TradeRecord
		err error
	)
	if tr.Period, err = ParseInt(rec[c.cols[0]]); err != nil {
		return tr, fmt.Errorf("column %s: %w", ColPeriod, err)
	}
	if tr.Exporter, err = ParseInt(rec[c.cols[1]]); err != nil {
		return tr, fmt.Errorf("column %s: %w", ColExporter, err)
	}
	if tr.Importer, err = ParseInt(rec[c.cols[2]]); err != nil {
		return tr, fmt.Errorf("column %s: %w", ColImporter, err)
	}
	// Clone so a kept record does not pin the whole line.
	tr.Product = strings.Clone(strings.TrimSpace(rec[c.cols[3]]))
	if tr.Quantity, err = ParseMeasure(rec[c.cols[4]]); err != nil {
		return tr, fmt.Errorf("column %s: %w", ColQuantity, err)
	}
	if tr.Value, err = ParseMeasure(rec[c.cols[5]]); err != nil {
		return tr, fmt.Errorf("column %s: %w", ColValue, err)
	}
	return tr, nil
}

func isBlank(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}
