package pipeline

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/reference"
)

const (
	countriesCSV = "country_code,country_name,country_iso2,country_iso3\n" +
		"4,Afghanistan,AF,AFG\n" +
		"8,Albania,AL,ALB\n" +
		"12,Algeria,DZ,DZA\n"
	productsCSV = "code,description\n" +
		"010121,Horses: pure-bred breeding animals\n" +
		"010129,Horses: other than pure-bred\n"
	// Three rows, periods {2020, 2020, 2021}, distinct pairs, all codes known.
	threeRowsCSV = "t,i,j,k,v,q\n" +
		"2020,4,8,010121,10.5,1\n" +
		"2020,8,12,010129,4.5,2\n" +
		"2021,12,4,010121,7,\n"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// inputDir returns a directory holding both reference files plus the given
// main files (name -> contents).
func inputDir(t *testing.T, mains map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "country_codes_V202401b.csv", countriesCSV)
	writeFile(t, dir, "product_codes_HS92_V202401b.csv", productsCSV)
	for name, body := range mains {
		writeFile(t, dir, name, body)
	}
	return dir
}

func testTables(t *testing.T) *reference.Tables {
	t.Helper()
	tables, err := reference.NewTables(
		[]domain.Country{
			{Code: 4, Name: "Afghanistan", ISO2: "AF", ISO3: "AFG"},
			{Code: 8, Name: "Albania", ISO2: "AL", ISO3: "ALB"},
			{Code: 12, Name: "Algeria", ISO2: "DZ", ISO3: "DZA"},
		},
		[]domain.Product{
			{Code: "010121", Description: "Horses: pure-bred breeding animals"},
			{Code: "010129", Description: "Horses: other than pure-bred"},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return tables
}

// recorder captures observer events in arrival order.
type recorder struct {
	mu     sync.Mutex
	events []string
	pcts   []int
	logs   []string
}

func (r *recorder) Progress(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcts = append(r.pcts, p)
	r.events = append(r.events, "progress")
}

func (r *recorder) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, msg)
	r.events = append(r.events, "log")
}
