package join

import (
	"testing"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/reference"
)

func testTables(t *testing.T) *reference.Tables {
	t.Helper()
	tables, err := reference.NewTables(
		[]domain.Country{
			{Code: 4, Name: "Afghanistan", ISO2: "AF", ISO3: "AFG"},
			{Code: 8, Name: "Albania", ISO2: "AL", ISO3: "ALB"},
		},
		[]domain.Product{
			{Code: "010121", Description: "Horses: live"},
		},
	)
	if err != nil {
		t.Fatalf("NewTables: %v", err)
	}
	return tables
}

func TestEnrich_FullMatch(t *testing.T) {
	t.Parallel()

	in := []domain.TradeRecord{{Period: 2020, Exporter: 4, Importer: 8, Product: "010121", Quantity: 1, Value: 2}}
	got := Enrich(in, testTables(t))
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	e := got[0]
	if e.TradeRecord != in[0] {
		t.Fatalf("base record changed: %+v", e.TradeRecord)
	}
	if e.ExporterName.String != "Afghanistan" || e.ExporterISO3.String != "AFG" {
		t.Fatalf("exporter = %+v %+v", e.ExporterName, e.ExporterISO3)
	}
	if e.ImporterName.String != "Albania" || e.ImporterISO2.String != "AL" {
		t.Fatalf("importer = %+v %+v", e.ImporterName, e.ImporterISO2)
	}
	if !e.ProductDescription.Valid || e.ProductDescription.String != "Horses: live" {
		t.Fatalf("description = %+v", e.ProductDescription)
	}
}

func TestEnrich_MissingKeysAreNull(t *testing.T) {
	t.Parallel()

	in := []domain.TradeRecord{
		{Period: 2020, Exporter: 999, Importer: 8, Product: "010121"},
		{Period: 2020, Exporter: 4, Importer: 999, Product: "10121"},
	}
	got := Enrich(in, testTables(t))
	if len(got) != 2 {
		t.Fatalf("rows dropped: %d", len(got))
	}
	if got[0].ExporterName.Valid || got[0].ExporterISO2.Valid || got[0].ExporterISO3.Valid {
		t.Fatalf("unknown exporter should be null: %+v", got[0])
	}
	if !got[0].ImporterName.Valid {
		t.Fatalf("known importer should match")
	}
	if got[1].ImporterName.Valid || got[1].ProductDescription.Valid {
		t.Fatalf("unknown importer/product should be null: %+v", got[1])
	}
}

func TestEnrich_PreservesCardinalityAndOrder(t *testing.T) {
	t.Parallel()

	tables := testTables(t)
	in := make([]domain.TradeRecord, 0, 50)
	for n := 0; n < 50; n++ {
		in = append(in, domain.TradeRecord{Period: 2000 + n, Exporter: 4 + 4*(n%3), Importer: 8, Product: "010121", Value: float64(n)})
	}
	got := Enrich(in, tables)
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for n := range in {
		if got[n].TradeRecord != in[n] {
			t.Fatalf("row %d reordered or modified", n)
		}
	}
}

func TestEnrich_Empty(t *testing.T) {
	t.Parallel()

	if got := Enrich(nil, testTables(t)); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}
