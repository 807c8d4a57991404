// Command csvprobe analyzes a main CSV file and an auxiliary CSV file and
// prints both structures plus a guess at the columns to merge on.
//
// Example:
//
//	csvprobe -main BACI_HS92_Y2020_V202401b.csv -aux country_codes_V202401b.csv
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/probe"
)

type report struct {
	Main     probe.Structure `json:"main"`
	Aux      probe.Structure `json:"aux"`
	Common   []string        `json:"common_columns"`
	Renames  []probe.Rename  `json:"candidate_renames"`
	CacheHit map[string]bool `json:"cache_hit,omitempty"`
}

func main() {
	var (
		flagMain    = flag.String("main", "", "main CSV file")
		flagAux     = flag.String("aux", "", "auxiliary CSV file")
		flagRows    = flag.Int("rows", probe.DefaultMaxRows, "data rows sampled per file")
		flagNoCache = flag.Bool("no-cache", false, "ignore and do not write <file>.probe.json caches")
		flagPretty  = flag.Bool("pretty", true, "pretty-print JSON output")
	)
	flag.Parse()

	if *flagMain == "" || *flagAux == "" {
		fmt.Fprintln(os.Stderr, "missing -main or -aux")
		flag.Usage()
		os.Exit(2)
	}

	rep := report{}
	if !*flagNoCache {
		rep.CacheHit = map[string]bool{}
	}
	analyze := func(path string) probe.Structure {
		if *flagNoCache {
			st, err := probe.Analyze(path, *flagRows)
			if err != nil {
				fatalf("csvprobe: %v", err)
			}
			return st
		}
		st, hit, err := probe.CachedAnalyze(path, *flagRows)
		if err != nil {
			fatalf("csvprobe: %v", err)
		}
		rep.CacheHit[path] = hit
		return st
	}

	rep.Main = analyze(*flagMain)
	rep.Aux = analyze(*flagAux)
	rep.Common, rep.Renames = probe.FindMergeKeys(rep.Main, rep.Aux)
	if rep.Common == nil {
		rep.Common = []string{}
	}
	if rep.Renames == nil {
		rep.Renames = []probe.Rename{}
	}

	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rep); err != nil {
		fatalf("encode: %v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
