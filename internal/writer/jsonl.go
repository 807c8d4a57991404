package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
)

// checkEvery is how many rows the file sinks write between context checks.
const checkEvery = 8192

// jsonRow fixes the key order of a JSON line to domain.Columns.
type jsonRow struct {
	T            int     `json:"t"`
	I            int     `json:"i"`
	J            int     `json:"j"`
	K            string  `json:"k"`
	Q            float64 `json:"q"`
	V            float64 `json:"v"`
	ExporterName *string `json:"exporter_name"`
	ExporterISO2 *string `json:"exporter_iso2"`
	ExporterISO3 *string `json:"exporter_iso3"`
	ImporterName *string `json:"importer_name"`
	ImporterISO2 *string `json:"importer_iso2"`
	ImporterISO3 *string `json:"importer_iso3"`
	Description  *string `json:"description"`
}

func ptr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// jsonlSink writes one JSON object per line. Nulls are JSON null.
type jsonlSink struct {
	path string
}

func (s *jsonlSink) Write(ctx context.Context, records []domain.EnrichedRecord) (string, error) {
	err := writeFile(s.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i := range records {
			if i%checkEvery == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			r := &records[i]
			row := jsonRow{
				T: r.Period, I: r.Exporter, J: r.Importer, K: r.Product, Q: r.Quantity, V: r.Value,
				ExporterName: ptr(r.ExporterName),
				ExporterISO2: ptr(r.ExporterISO2),
				ExporterISO3: ptr(r.ExporterISO3),
				ImporterName: ptr(r.ImporterName),
				ImporterISO2: ptr(r.ImporterISO2),
				ImporterISO3: ptr(r.ImporterISO3),
				Description:  ptr(r.ProductDescription),
			}
			if err := enc.Encode(&row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.path, nil
}
