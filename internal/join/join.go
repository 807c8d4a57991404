// Package join enriches trade records with reference attributes.
package join

import (
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/reference"
)

// Enrich left-joins every record of batch against the reference tables:
// exporter code i and importer code j against the country table (into the
// exporter_* and importer_* attributes respectively) and product code k
// against the product table.
//
// The output has the same length and order as batch. A key with no match
// leaves its attributes null; no row is ever dropped or duplicated, since
// Tables holds at most one entry per key.
func Enrich(batch []domain.TradeRecord, tables *reference.Tables) []domain.EnrichedRecord {
	out := make([]domain.EnrichedRecord, len(batch))
	for n, r := range batch {
		e := &out[n]
		e.TradeRecord = r

		if c, ok := tables.Country(r.Exporter); ok {
			e.ExporterName = domain.NullString(c.Name)
			e.ExporterISO2 = domain.NullString(c.ISO2)
			e.ExporterISO3 = domain.NullString(c.ISO3)
		}
		if c, ok := tables.Country(r.Importer); ok {
			e.ImporterName = domain.NullString(c.Name)
			e.ImporterISO2 = domain.NullString(c.ISO2)
			e.ImporterISO3 = domain.NullString(c.ISO3)
		}
		if p, ok := tables.Product(r.Product); ok {
			e.ProductDescription = domain.NullString(p.Description)
		}
	}
	return out
}
