package probe

import (
	"errors"
	"io"
	"os"
	"strings"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"empty", []string{"", " "}, TypeText},
		{"integers", []string{"2020", " 4", ""}, TypeInteger},
		{"leading zeros stay text", []string{"010121", "20110"}, TypeText},
		{"reals", []string{"1.5", "2", "3e2"}, TypeReal},
		{"booleans", []string{"yes", "no", "T"}, TypeBoolean},
		{"dates", []string{"2024-01-31", "2023-12-01"}, TypeDate},
		{"timestamps", []string{"2024-01-31 10:00:00", "2024-01-31"}, TypeTimestamp},
		{"text", []string{"Horses", "1"}, TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferType(tt.values); got != tt.want {
				t.Fatalf("InferType(%q) = %s, want %s", tt.values, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" Country Code ": "country_code",
		"C\u00f4te--d'Ivoire": "cote_divoire",
		"__":             "col",
		"iso.3":          "iso_3",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	body := "\uFEFFt,i,j,k,v,q\n" +
		"2020,4,8,010121,10.5,1\n" +
		"bad,row\n" +
		"2020,8,12,010129,4.5,\n"
	for n := 0; n < 10; n++ {
		body += "2021,12,4,010121,7,2\n"
	}
	path := writeCSV(t, "BACI_HS92_Y2020.csv", body)

	st, err := Analyze(path, 5)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if st.Rows != 5 {
		t.Fatalf("rows = %d, want 5", st.Rows)
	}
	if !reflect.DeepEqual(st.Names(), []string{"t", "i", "j", "k", "v", "q"}) {
		t.Fatalf("names = %v", st.Names())
	}
	types := make([]string, len(st.Columns))
	for i, c := range st.Columns {
		types[i] = c.Type
	}
	want := []string{TypeInteger, TypeInteger, TypeInteger, TypeText, TypeReal, TypeInteger}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	if len(st.Columns[0].Sample) != SampleSize || st.Columns[3].Sample[0] != "010121" {
		t.Fatalf("sample = %v", st.Columns[3].Sample)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Analyze(writeCSV(t, "empty.csv", ""), 10); err == nil {
		t.Fatalf("expected error for empty file")
	}
	if _, err := Analyze(filepath.Join(t.TempDir(), "missing.csv"), 10); !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

// failingReader serves r and then fails every read with err.
type failingReader struct {
	r   io.Reader
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, f.err
	}
	return n, err
}

func TestAnalyze_ReadErrorAfterHeader(t *testing.T) {
	t.Parallel()

	eio := errors.New("input/output error")
	done := make(chan error, 1)
	go func() {
		_, err := analyze(&failingReader{r: strings.NewReader("a,b\n1,2\n"), err: eio}, 1000)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, eio) {
			t.Fatalf("err = %v, want %v", err, eio)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("analyze did not return on a persistent read error")
	}
}

func TestCachedAnalyze(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "country_codes.csv", "country_code,country_name\n4,Afghanistan\n")

	first, hit, err := CachedAnalyze(path, 10)
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	if _, err := os.Stat(CachePath(path)); err != nil {
		t.Fatalf("cache not written: %v", err)
	}

	second, hit, err := CachedAnalyze(path, 10)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached = %+v, want %+v", second, first)
	}

	// A different row cap misses.
	if _, hit, _ := CachedAnalyze(path, 20); hit {
		t.Fatalf("hit with different maxRows")
	}

	// Changing the file invalidates the cache.
	if err := os.WriteFile(path, []byte("country_code,country_name,iso3\n4,Afghanistan,AFG\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	third, hit, err := CachedAnalyze(path, 20)
	if err != nil || hit {
		t.Fatalf("after change: hit=%v err=%v", hit, err)
	}
	if len(third.Columns) != 3 {
		t.Fatalf("columns = %v", third.Names())
	}
}

func TestFindMergeKeys(t *testing.T) {
	t.Parallel()

	main := Structure{Columns: []Column{
		{Name: "t", Type: TypeInteger, Sample: []string{"2020"}},
		{Name: "i", Type: TypeInteger, Sample: []string{"4", "8"}},
		{Name: "k", Type: TypeText, Sample: []string{"010121"}},
		{Name: "Country Code", Type: TypeInteger, Sample: []string{"1"}},
	}}
	aux := Structure{Columns: []Column{
		{Name: "country_code", Type: TypeInteger, Sample: []string{"4", "8"}},
		{Name: "k", Type: TypeText, Sample: []string{"010121"}},
		{Name: "empty", Type: TypeText, Sample: []string{}},
	}}

	common, renames := FindMergeKeys(main, aux)
	if !reflect.DeepEqual(common, []string{"k"}) {
		t.Fatalf("common = %v", common)
	}
	want := []Rename{
		{Main: "i", Aux: "country_code", Reason: ReasonSameValues},
		{Main: "Country Code", Aux: "country_code", Reason: ReasonSameName},
	}
	if !reflect.DeepEqual(renames, want) {
		t.Fatalf("renames = %+v\nwant      %+v", renames, want)
	}

	// Pure: inputs untouched, repeated calls agree.
	c2, r2 := FindMergeKeys(main, aux)
	if !reflect.DeepEqual(c2, common) || !reflect.DeepEqual(r2, renames) {
		t.Fatalf("not deterministic")
	}
}
