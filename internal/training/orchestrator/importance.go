package orchestrator

import (
	"math"
	"sort"
)

// NormalizeImportance rescales non-negative scores to percentage points
// summing to 100. All-zero input becomes a uniform distribution. Negative
// or non-finite scores count as zero.
func NormalizeImportance(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return map[string]float64{}
	}
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	// Summed in key order so equal inputs give bit-identical output.
	sort.Strings(names)
	var total float64
	for _, k := range names {
		total += clean(raw[k])
	}
	out := make(map[string]float64, len(raw))
	if total == 0 {
		share := 100 / float64(len(raw))
		for k := range raw {
			out[k] = share
		}
		return out
	}
	for k, v := range raw {
		out[k] = clean(v) / total * 100
	}
	return out
}

func clean(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// averageImportance averages per-partition normalized maps and renormalizes.
func averageImportance(parts []map[string]float64) map[string]float64 {
	if len(parts) == 0 {
		return map[string]float64{}
	}
	keys := make(map[string]struct{})
	for _, p := range parts {
		for k := range p {
			keys[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	sum := make(map[string]float64, len(names))
	for _, name := range names {
		for _, p := range parts {
			sum[name] += p[name]
		}
		sum[name] /= float64(len(parts))
	}
	return NormalizeImportance(sum)
}
