package writer

import (
	"encoding/json"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/summary"
)

// Sheet names of the summary workbook, one per report table.
const (
	SheetTopExporters = "Top Exporters"
	SheetTopProducts  = "Top Products"
	SheetTimeSeries   = "Time Series"
	SheetTotals       = "Totals"
	SheetDistribution = "Distribution"
)

// SummaryJSONPath and SummaryXLSXPath name the summary artifacts of base.
func SummaryJSONPath(base string) string { return base + "_summary.json" }
func SummaryXLSXPath(base string) string { return base + "_summary.xlsx" }

// WriteSummary writes rep as <base>_summary.json and <base>_summary.xlsx
// and returns both paths.
func WriteSummary(base string, rep summary.Report) ([]string, error) {
	// Empty tables encode as [] rather than null.
	if rep.TopExporters == nil {
		rep.TopExporters = []summary.NamedTotal{}
	}
	if rep.TopProducts == nil {
		rep.TopProducts = []summary.ProductTotal{}
	}
	if rep.Series == nil {
		rep.Series = []summary.PeriodTotal{}
	}

	jsonPath := SummaryJSONPath(base)
	if err := writeJSON(jsonPath, rep); err != nil {
		return nil, err
	}
	xlsxPath := SummaryXLSXPath(base)
	if err := writeFile(xlsxPath, func(w io.Writer) error { return writeWorkbook(w, rep) }); err != nil {
		return []string{jsonPath}, err
	}
	return []string{jsonPath, xlsxPath}, nil
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

type sheet struct {
	name   string
	header []any
	rows   [][]any
}

func reportSheets(rep summary.Report) []sheet {
	exp := sheet{name: SheetTopExporters, header: []any{"exporter_name", "v"}}
	for _, e := range rep.TopExporters {
		exp.rows = append(exp.rows, []any{e.Name, e.Value})
	}
	prod := sheet{name: SheetTopProducts, header: []any{"k", "description", "v"}}
	for _, p := range rep.TopProducts {
		prod.rows = append(prod.rows, []any{p.Code, p.Description, p.Value})
	}
	series := sheet{name: SheetTimeSeries, header: []any{"t", "v"}}
	for _, p := range rep.Series {
		series.rows = append(series.rows, []any{p.Period, p.Value})
	}
	totals := sheet{
		name:   SheetTotals,
		header: []any{"total_value", "distinct_countries", "distinct_products"},
		rows:   [][]any{{rep.Totals.TotalValue, rep.Totals.DistinctCountries, rep.Totals.DistinctProducts}},
	}
	d := rep.Distribution
	dist := sheet{
		name:   SheetDistribution,
		header: []any{"count", "mean", "median", "std_dev", "p90"},
		rows:   [][]any{{d.Count, d.Mean, d.Median, d.StdDev, d.P90}},
	}
	return []sheet{exp, prod, series, totals, dist}
}

func writeWorkbook(w io.Writer, rep summary.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	for n, s := range reportSheets(rep) {
		if n == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
			return err
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return err
			}
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}
