// Package domain holds the record types that flow through the BACI
// merge-and-sample pipeline.
package domain

import "database/sql"

// TradeRecord is one row of a BACI main file.
//
// Product keeps the code exactly as written in the source ("010121"), so it
// is never treated as a bare integer.
type TradeRecord struct {
	Period   int     // t
	Exporter int     // i
	Importer int     // j
	Product  string  // k
	Quantity float64 // q, null imputed to 0
	Value    float64 // v, null imputed to 0
}

// Key returns the stratification key of the record.
func (r TradeRecord) Key() GroupKey {
	return GroupKey{Period: r.Period, Exporter: r.Exporter, Importer: r.Importer}
}

// GroupKey identifies a SampleGroup: all records sharing period, exporter and
// importer.
type GroupKey struct {
	Period   int
	Exporter int
	Importer int
}

// Country is one entry of the country reference table.
type Country struct {
	Code int
	Name string
	ISO2 string
	ISO3 string
}

// Product is one entry of the product reference table.
type Product struct {
	Code        string
	Description string
}

// EnrichedRecord is a TradeRecord plus the attributes resolved by the
// reference joins. A failed lookup leaves the corresponding fields invalid
// (null); the row itself is always kept.
type EnrichedRecord struct {
	TradeRecord

	ExporterName sql.NullString
	ExporterISO2 sql.NullString
	ExporterISO3 sql.NullString

	ImporterName sql.NullString
	ImporterISO2 sql.NullString
	ImporterISO3 sql.NullString

	ProductDescription sql.NullString
}

// Columns is the canonical output column order used by every tabular sink.
var Columns = []string{
	"t", "i", "j", "k", "q", "v",
	"exporter_name", "exporter_iso2", "exporter_iso3",
	"importer_name", "importer_iso2", "importer_iso3",
	"description",
}

// Values renders the record in Columns order. Null enrichment fields are
// returned as nil.
func (r EnrichedRecord) Values() []any {
	return []any{
		r.Period, r.Exporter, r.Importer, r.Product, r.Quantity, r.Value,
		nullable(r.ExporterName), nullable(r.ExporterISO2), nullable(r.ExporterISO3),
		nullable(r.ImporterName), nullable(r.ImporterISO2), nullable(r.ImporterISO3),
		nullable(r.ProductDescription),
	}
}

// Strings renders the record in Columns order for text sinks. Nulls become
// empty strings.
func (r EnrichedRecord) Strings() []string {
	return []string{
		itoa(r.Period), itoa(r.Exporter), itoa(r.Importer), r.Product,
		ftoa(r.Quantity), ftoa(r.Value),
		r.ExporterName.String, r.ExporterISO2.String, r.ExporterISO3.String,
		r.ImporterName.String, r.ImporterISO2.String, r.ImporterISO3.String,
		r.ProductDescription.String,
	}
}

func nullable(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}
