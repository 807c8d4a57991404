package csv

import (
	"strings"
	"testing"
)

func TestParseInt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"2020", 2020, false},
		{" 4 ", 4, false},
		{"-12", -12, false},
		{"2020.0", 2020, false},
		{"4.5", 0, true},
		{"", 0, true},
		{"NA", 0, true},
		{"abc", 0, true},
		{"1e300", 0, true},
		{"Inf", 0, true},
	}
	for _, c := range cases {
		got, err := ParseInt(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseInt(%q) err = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if !c.wantErr && got != c.want {
			t.Errorf("ParseInt(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseMeasure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1.25", 1.25, false},
		{"  3 ", 3, false},
		{"", 0, false},
		{"NA", 0, false},
		{"           NA", 0, false},
		{"nan", 0, false},
		{"NULL", 0, false},
		{"n/a", 0, false},
		{"1e3", 1000, false},
		{"x1", 0, true},
	}
	for _, c := range cases {
		got, err := ParseMeasure(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("ParseMeasure(%q) err = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if got != c.want {
			t.Errorf("ParseMeasure(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeHeaderAndRequire(t *testing.T) {
	t.Parallel()

	idx := NormalizeHeader([]string{"\uFEFFT", " i ", "J", "t"})
	if idx["t"] != 0 || idx["i"] != 1 || idx["j"] != 2 {
		t.Fatalf("idx = %v", idx)
	}

	got, err := Require(idx, "j", "t")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if got[0] != 2 || got[1] != 0 {
		t.Fatalf("Require = %v", got)
	}

	_, err = Require(idx, "t", "k", "v")
	if err == nil || !strings.Contains(err.Error(), "k, v") {
		t.Fatalf("want missing k, v; got %v", err)
	}
}

func TestStripHeaderBOM_Empty(t *testing.T) {
	t.Parallel()

	if got := StripHeaderBOM(nil); got != nil {
		t.Fatalf("got %v", got)
	}
}
