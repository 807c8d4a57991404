package domain

import (
	"reflect"
	"testing"
)

func TestEnrichedRecord_Values_NullsAreNil(t *testing.T) {
	t.Parallel()

	r := EnrichedRecord{
		TradeRecord:  TradeRecord{Period: 2020, Exporter: 4, Importer: 8, Product: "010121", Quantity: 1.5, Value: 10},
		ExporterName: NullString("Afghanistan"),
	}

	got := r.Values()
	if len(got) != len(Columns) {
		t.Fatalf("len(Values()) = %d, want %d", len(got), len(Columns))
	}
	if got[3] != "010121" {
		t.Fatalf("product code = %v, want leading zero preserved", got[3])
	}
	if got[6] != "Afghanistan" {
		t.Fatalf("exporter_name = %v, want Afghanistan", got[6])
	}
	for i := 7; i < len(got); i++ {
		if got[i] != nil {
			t.Fatalf("column %s = %v, want nil", Columns[i], got[i])
		}
	}
}

func TestEnrichedRecord_Strings(t *testing.T) {
	t.Parallel()

	r := EnrichedRecord{
		TradeRecord:        TradeRecord{Period: 2021, Exporter: 4, Importer: 8, Product: "0101", Quantity: 0, Value: 12.25},
		ProductDescription: NullString("Horses"),
	}
	want := []string{"2021", "4", "8", "0101", "0", "12.25", "", "", "", "", "", "", "Horses"}
	if got := r.Strings(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Strings() = %#v, want %#v", got, want)
	}
}

func TestTradeRecord_Key(t *testing.T) {
	t.Parallel()

	r := TradeRecord{Period: 2020, Exporter: 1, Importer: 2, Product: "x"}
	if got, want := r.Key(), (GroupKey{Period: 2020, Exporter: 1, Importer: 2}); got != want {
		t.Fatalf("Key() = %+v, want %+v", got, want)
	}
}
