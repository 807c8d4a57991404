// Package reference loads the BACI country and product lookup tables.
//
// Both tables are loaded once per run and are read-only afterwards; Tables
// may be shared by any number of goroutines without locking.
package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/datasource"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/datasource/file"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
	bacicsv "github.com/ihelfrich/BACI-ProcessingUtility/internal/parser/csv"
)

// File name markers of the two reference files.
const (
	CountryMarker = "country_codes"
	ProductMarker = "product_codes"
)

// Tables bundles the two lookup tables.
type Tables struct {
	countries map[int]domain.Country
	products  map[string]domain.Product
}

// NewTables builds Tables from already-decoded entries. Duplicate keys are
// rejected the same way the loaders reject them.
func NewTables(countries []domain.Country, products []domain.Product) (*Tables, error) {
	t := &Tables{
		countries: make(map[int]domain.Country, len(countries)),
		products:  make(map[string]domain.Product, len(products)),
	}
	for _, c := range countries {
		if _, dup := t.countries[c.Code]; dup {
			return nil, errs.Errorf(errs.KindDuplicateReferenceKey, "load countries", "", "duplicate country_code %d", c.Code)
		}
		t.countries[c.Code] = c
	}
	for _, p := range products {
		if _, dup := t.products[p.Code]; dup {
			return nil, errs.Errorf(errs.KindDuplicateReferenceKey, "load products", "", "duplicate product code %q", p.Code)
		}
		t.products[p.Code] = p
	}
	return t, nil
}

// Country looks up a country by numeric code.
func (t *Tables) Country(code int) (domain.Country, bool) {
	c, ok := t.countries[code]
	return c, ok
}

// Product looks up a product by its code string, exactly as written.
func (t *Tables) Product(code string) (domain.Product, bool) {
	p, ok := t.products[code]
	return p, ok
}

// Len returns the number of countries and products loaded.
func (t *Tables) Len() (countries, products int) {
	return len(t.countries), len(t.products)
}

// Locate picks the country and product reference files out of files. The
// first file whose base name contains the marker wins.
func Locate(files []string) (countryPath, productPath string, err error) {
	for _, f := range files {
		base := filepath.Base(f)
		if countryPath == "" && strings.Contains(base, CountryMarker) {
			countryPath = f
		}
		if productPath == "" && strings.Contains(base, ProductMarker) {
			productPath = f
		}
	}

	var missing []string
	if countryPath == "" {
		missing = append(missing, CountryMarker)
	}
	if productPath == "" {
		missing = append(missing, ProductMarker)
	}
	if len(missing) > 0 {
		return "", "", errs.Errorf(errs.KindMissingReferenceData, "locate reference files", "",
			"no file matching %s", strings.Join(missing, ", "))
	}
	return countryPath, productPath, nil
}

// Load locates both reference files among files, opens them and loads the
// tables.
func Load(ctx context.Context, files []string) (*Tables, error) {
	cp, pp, err := Locate(files)
	if err != nil {
		return nil, err
	}

	countries, err := loadFrom(ctx, file.NewLocal(cp), LoadCountries)
	if err != nil {
		return nil, wrapPath(err, "load countries", cp)
	}
	products, err := loadFrom(ctx, file.NewLocal(pp), LoadProducts)
	if err != nil {
		return nil, wrapPath(err, "load products", pp)
	}
	return NewTables(countries, products)
}

func loadFrom[T any](ctx context.Context, src datasource.Source, fn func(context.Context, io.Reader) ([]T, error)) ([]T, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return fn(ctx, rc)
}

// wrapPath attaches the file path to a loader error. Errors without a kind
// (I/O, malformed CSV) become MissingReferenceData since the run cannot
// proceed without the table.
func wrapPath(err error, op, path string) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return errs.New(e.Kind, op, path, e.Err)
	}
	return errs.New(errs.KindMissingReferenceData, op, path, err)
}

// LoadCountries decodes a country_codes CSV. Required columns are
// country_code, country_name, country_iso2 and country_iso3, in any order.
// Names are normalized to NFC. A repeated code is a DuplicateReferenceKey
// error.
func LoadCountries(ctx context.Context, r io.Reader) ([]domain.Country, error) {
	var out []domain.Country
	seen := make(map[int]int)
	err := scan(ctx, r, []string{"country_code", "country_name", "country_iso2", "country_iso3"},
		func(line int, cells []string) error {
			code, err := bacicsv.ParseInt(cells[0])
			if err != nil {
				return fmt.Errorf("line %d: country_code: %w", line, err)
			}
			if prev, dup := seen[code]; dup {
				return errs.Errorf(errs.KindDuplicateReferenceKey, "load countries", "",
					"country_code %d on lines %d and %d", code, prev, line)
			}
			seen[code] = line
			out = append(out, domain.Country{
				Code: code,
				Name: norm.NFC.String(strings.TrimSpace(cells[1])),
				ISO2: strings.TrimSpace(cells[2]),
				ISO3: strings.TrimSpace(cells[3]),
			})
			return nil
		})
	return out, err
}

// LoadProducts decodes a product_codes CSV with columns code and
// description. Codes are trimmed and otherwise kept verbatim.
func LoadProducts(ctx context.Context, r io.Reader) ([]domain.Product, error) {
	var out []domain.Product
	seen := make(map[string]int)
	err := scan(ctx, r, []string{"code", "description"},
		func(line int, cells []string) error {
			code := strings.TrimSpace(cells[0])
			if prev, dup := seen[code]; dup {
				return errs.Errorf(errs.KindDuplicateReferenceKey, "load products", "",
					"code %q on lines %d and %d", code, prev, line)
			}
			seen[code] = line
			out = append(out, domain.Product{
				Code:        code,
				Description: norm.NFC.String(strings.TrimSpace(cells[1])),
			})
			return nil
		})
	return out, err
}

// scan reads a header, resolves want and calls fn with the selected cells of
// every data row. Cells passed to fn are only valid during the call.
func scan(ctx context.Context, r io.Reader, want []string, fn func(line int, cells []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: empty file")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	ix, err := bacicsv.Require(bacicsv.NormalizeHeader(hdr), want...)
	if err != nil {
		return err
	}

	cells := make([]string, len(ix))
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("csv read: %w", err)
		}
		line, _ := cr.FieldPos(0)
		for k, i := range ix {
			if i >= len(rec) {
				return fmt.Errorf("line %d: expected at least %d fields, got %d", line, i+1, len(rec))
			}
			cells[k] = rec[i]
		}
		if err := fn(line, cells); err != nil {
			return err
		}
	}
}
