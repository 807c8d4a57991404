// Package csv reads BACI main files as bounded-size batches of typed trade
// records.
package csv

import (
	"fmt"
	"strings"
)

const utf8BOM = "\uFEFF"

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

// NormalizeHeader trims, lower-cases and de-BOMs header cells, returning a
// name → column index map. Later duplicates do not override earlier ones.
func NormalizeHeader(hdr []string) map[string]int {
	hdr = StripHeaderBOM(hdr)
	idx := make(map[string]int, len(hdr))
	for i, h := range hdr {
		h = strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// Require resolves each name in want against a normalized header. Missing
// columns are reported together.
func Require(idx map[string]int, want ...string) ([]int, error) {
	out := make([]int, len(want))
	var missing []string
	for n, name := range want {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[n] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}
