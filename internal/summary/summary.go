// Package summary computes the summary report of a merged dataset.
//
// The report is a set of independent tables (top exporters, top products,
// per-period series, scalar totals) plus a distribution of row values.
package summary

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
)

// NamedTotal is a summed value attributed to a name.
type NamedTotal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ProductTotal is a summed value attributed to a (code, description) pair.
type ProductTotal struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
}

// PeriodTotal is the summed value of one period.
type PeriodTotal struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// Totals holds the scalar aggregates.
type Totals struct {
	TotalValue float64 `json:"total_value"`
	// DistinctCountries counts codes appearing as exporter or importer;
	// a country on both sides counts once.
	DistinctCountries int `json:"distinct_countries"`
	DistinctProducts  int `json:"distinct_products"`
}

// Distribution describes the row-level value column.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	P90    float64 `json:"p90"`
}

// Report is the full summary.
type Report struct {
	TopExporters []NamedTotal   `json:"top_exporters"`
	TopProducts  []ProductTotal `json:"top_products"`
	Series       []PeriodTotal  `json:"time_series"`
	Totals       Totals         `json:"totals"`
	Distribution Distribution   `json:"value_distribution"`
}

// Compute builds the report. Top lists hold at most topN entries ordered by
// summed value descending; ties keep first-encountered order. Rows whose
// exporter name or product description is null do not enter the
// respective top list.
func Compute(records []domain.EnrichedRecord, topN int) Report {
	var (
		exporters = newRanking[string]()
		products  = newRanking[productKey]()
		periods   = make(map[int]float64)
		countries = make(map[int]struct{})
		codes     = make(map[string]struct{})
		values    = make([]float64, 0, len(records))
		rep       Report
	)

	for i := range records {
		r := &records[i]
		rep.Totals.TotalValue += r.Value
		values = append(values, r.Value)
		periods[r.Period] += r.Value
		countries[r.Exporter] = struct{}{}
		countries[r.Importer] = struct{}{}
		codes[r.Product] = struct{}{}

		if r.ExporterName.Valid {
			exporters.add(r.ExporterName.String, r.Value)
		}
		if r.ProductDescription.Valid {
			products.add(productKey{r.Product, r.ProductDescription.String}, r.Value)
		}
	}

	for _, e := range exporters.top(topN) {
		rep.TopExporters = append(rep.TopExporters, NamedTotal{Name: e.key, Value: e.sum})
	}
	for _, e := range products.top(topN) {
		rep.TopProducts = append(rep.TopProducts, ProductTotal{Code: e.key.code, Description: e.key.desc, Value: e.sum})
	}

	rep.Series = make([]PeriodTotal, 0, len(periods))
	for p, v := range periods {
		rep.Series = append(rep.Series, PeriodTotal{Period: p, Value: v})
	}
	sort.Slice(rep.Series, func(a, b int) bool { return rep.Series[a].Period < rep.Series[b].Period })

	rep.Totals.DistinctCountries = len(countries)
	rep.Totals.DistinctProducts = len(codes)
	rep.Distribution = distribution(values)
	return rep
}

func distribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	d := Distribution{Count: len(values)}
	// Errors only signal empty input, ruled out above.
	d.Mean, _ = stats.Mean(values)
	d.Median, _ = stats.Median(values)
	d.StdDev, _ = stats.StandardDeviation(values)
	d.P90, _ = stats.Percentile(values, 90)
	return d
}

type productKey struct {
	code string
	desc string
}

type entry[K comparable] struct {
	key K
	sum float64
}

// ranking sums values per key and remembers first-encounter order.
type ranking[K comparable] struct {
	pos     map[K]int
	entries []entry[K]
}

func newRanking[K comparable]() *ranking[K] {
	return &ranking[K]{pos: make(map[K]int)}
}

func (r *ranking[K]) add(k K, v float64) {
	i, ok := r.pos[k]
	if !ok {
		i = len(r.entries)
		r.pos[k] = i
		r.entries = append(r.entries, entry[K]{key: k})
	}
	r.entries[i].sum += v
}

// top returns the n largest sums. The stable sort keeps encounter order
// among equal sums.
func (r *ranking[K]) top(n int) []entry[K] {
	out := append([]entry[K](nil), r.entries...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].sum > out[b].sum })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
