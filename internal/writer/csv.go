package writer

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
)

// csvSink writes a header row followed by one row per record. Nulls are
// empty cells.
type csvSink struct {
	path string
}

func (s *csvSink) Write(ctx context.Context, records []domain.EnrichedRecord) (string, error) {
	err := writeFile(s.path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(domain.Columns); err != nil {
			return err
		}
		for i := range records {
			if i%checkEvery == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			if err := cw.Write(records[i].Strings()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return "", err
	}
	return s.path, nil
}
