package orchestrator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"fedlearn/internal/pipeline"
)

// partition is one train/evaluate split, as positions into labels.
type partition struct {
	train []int
	test  []int
}

// partitions builds the holdout split or the k folds described by v. The
// shuffle is seeded so the same spec always yields the same partitions.
func partitions(v pipeline.Validation, y []float64, stratify bool) ([]partition, error) {
	n := len(y)
	rng := rand.New(rand.NewPCG(uint64(v.Seed), uint64(v.Seed)))
	groups := groupPositions(y, stratify)
	for _, g := range groups {
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
	}

	switch v.Strategy {
	case pipeline.ValidationKFold:
		k := v.Folds
		if k < 2 || n < k {
			return nil, fmt.Errorf("%w: %d rows for %d folds", pipeline.ErrInsufficientData, n, k)
		}
		fold := make([]int, n)
		next := 0
		for _, g := range groups {
			for _, p := range g {
				fold[p] = next % k
				next++
			}
		}
		parts := make([]partition, k)
		for p := 0; p < n; p++ {
			for f := range parts {
				if fold[p] == f {
					parts[f].test = append(parts[f].test, p)
				} else {
					parts[f].train = append(parts[f].train, p)
				}
			}
		}
		return parts, nil

	case pipeline.ValidationHoldout:
		var part partition
		for _, g := range groups {
			cut := int(math.Round(v.TestFraction * float64(len(g))))
			part.test = append(part.test, g[:cut]...)
			part.train = append(part.train, g[cut:]...)
		}
		if len(part.test) == 0 || len(part.train) == 0 {
			return nil, fmt.Errorf("%w: holdout split of %d rows leaves an empty partition", pipeline.ErrInsufficientData, n)
		}
		sort.Ints(part.test)
		sort.Ints(part.train)
		return []partition{part}, nil

	default:
		return nil, fmt.Errorf("unknown validation strategy %q", v.Strategy)
	}
}

// groupPositions groups positions by class label when stratifying, in label
// order; otherwise it returns a single group.
func groupPositions(y []float64, stratify bool) [][]int {
	if !stratify {
		all := make([]int, len(y))
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}
	byLabel := make(map[float64][]int)
	var keys []float64
	for i, v := range y {
		if _, ok := byLabel[v]; !ok {
			keys = append(keys, v)
		}
		byLabel[v] = append(byLabel[v], i)
	}
	sort.Float64s(keys)
	out := make([][]int, len(keys))
	for i, k := range keys {
		out[i] = byLabel[k]
	}
	return out
}
