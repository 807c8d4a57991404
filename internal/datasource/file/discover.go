package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/errs"
)

// MainFileMarker is the substring that identifies a BACI main (trade-flow)
// file, e.g. BACI_HS92_Y2020_V202401b.csv.
const MainFileMarker = "BACI_HS"

// Inventory is the result of scanning an input directory.
type Inventory struct {
	Dir string
	// All lists every CSV file in Dir, sorted.
	All []string
	// Main lists the BACI main files among All, sorted.
	Main []string
}

// RequireMain returns an errs.KindNoMainFilesFound error when the inventory
// holds no main file.
func (inv Inventory) RequireMain() error {
	if len(inv.Main) == 0 {
		return errs.Errorf(errs.KindNoMainFilesFound, "discover", inv.Dir,
			"no file name contains %q among %d CSV files", MainFileMarker, len(inv.All))
	}
	return nil
}

// Restrict keeps only the main files whose path or base name appears in
// names. It is used to run over an explicit subset of a directory.
func (inv Inventory) Restrict(names []string) Inventory {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[filepath.Clean(n)] = struct{}{}
		want[filepath.Base(n)] = struct{}{}
	}
	out := inv
	out.Main = nil
	for _, p := range inv.Main {
		_, byPath := want[filepath.Clean(p)]
		_, byName := want[filepath.Base(p)]
		if byPath || byName {
			out.Main = append(out.Main, p)
		}
	}
	return out
}

// Discover lists the CSV files of dir (non-recursive) and classifies the
// main files. Reference files are located by the reference package.
func Discover(dir string) (Inventory, error) {
	all, err := ListCSV(dir)
	if err != nil {
		return Inventory{Dir: dir}, err
	}
	return Inventory{Dir: dir, All: all, Main: MainFiles(all)}, nil
}

// ListCSV returns the paths of the *.csv files directly inside dir, sorted.
// The extension match is case-insensitive.
func ListCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// MainFiles filters files down to BACI main files, keeping order.
func MainFiles(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.Contains(filepath.Base(f), MainFileMarker) {
			out = append(out, f)
		}
	}
	return out
}
