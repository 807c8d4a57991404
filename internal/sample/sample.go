// Package sample implements stratified sampling of enriched trade records.
//
// Records are stratified by (period, exporter, importer). Within each group
// round(fraction × size) records are drawn uniformly without replacement,
// rounding half to even. Every group is drawn from its own random stream,
// derived from the run seed and the group's identity, so results do not
// depend on worker count or on the order in which files complete.
package sample

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zeebo/xxh3"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/config"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
)

// Sampler is an immutable sampling configuration. The zero value is a
// disabled sampler.
type Sampler struct {
	Enabled  bool
	Fraction float64
	Seed     uint64
}

// New builds a Sampler from configuration. The fraction is only checked
// when sampling is enabled.
func New(cfg config.Sampling) (Sampler, error) {
	if cfg.Enabled && !(cfg.Fraction > 0 && cfg.Fraction <= 1) {
		return Sampler{}, fmt.Errorf("sample: fraction must be in (0, 1], got %v", cfg.Fraction)
	}
	return Sampler{Enabled: cfg.Enabled, Fraction: cfg.Fraction, Seed: cfg.Seed}, nil
}

// Size returns how many records a group of n keeps.
func (s Sampler) Size(n int) int {
	if !s.Enabled {
		return n
	}
	k := int(math.RoundToEven(s.Fraction * float64(n)))
	return min(max(k, 0), n)
}

// Apply samples batch. stream names the batch's origin (file and chunk
// index) and feeds the per-group random streams; two calls with the same
// stream, seed and batch return the same rows.
//
// When disabled, batch itself is returned. Otherwise the result is a new
// slice holding the kept records in their original relative order.
func (s Sampler) Apply(stream string, batch []domain.EnrichedRecord) []domain.EnrichedRecord {
	if !s.Enabled || len(batch) == 0 {
		return batch
	}

	order, groups := partition(batch)

	keep := make([]bool, len(batch))
	total := 0
	for _, key := range order {
		idx := groups[key]
		k := s.Size(len(idx))
		if k == 0 {
			continue
		}
		if k < len(idx) {
			rng := rand.New(rand.NewPCG(s.Seed, groupHash(stream, key)))
			// Partial Fisher-Yates: the first k slots end up holding a
			// uniform sample without replacement.
			for i := 0; i < k; i++ {
				j := i + rng.IntN(len(idx)-i)
				idx[i], idx[j] = idx[j], idx[i]
			}
		}
		for _, i := range idx[:k] {
			keep[i] = true
		}
		total += k
	}

	out := make([]domain.EnrichedRecord, 0, total)
	for i, ok := range keep {
		if ok {
			out = append(out, batch[i])
		}
	}
	return out
}

// partition returns the group keys in order of first appearance and the
// row indices of every group.
func partition(batch []domain.EnrichedRecord) ([]domain.GroupKey, map[domain.GroupKey][]int) {
	groups := make(map[domain.GroupKey][]int)
	var order []domain.GroupKey
	for i := range batch {
		key := batch[i].Key()
		idx, seen := groups[key]
		if !seen {
			order = append(order, key)
		}
		groups[key] = append(idx, i)
	}
	return order, groups
}

func groupHash(stream string, key domain.GroupKey) uint64 {
	buf := make([]byte, 0, len(stream)+1+24)
	buf = append(buf, stream...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(key.Period))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(key.Exporter))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(key.Importer))
	return xxh3.Hash(buf)
}
