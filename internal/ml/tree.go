package ml

import (
	"math/rand/v2"
	"slices"
)

type treeNode struct {
	feature   int // -1 marks a leaf
	threshold float64
	left      int
	right     int
	value     float64
}

// Tree is a CART decision tree: gini impurity for classification, squared
// error for regression. Importances are total impurity decrease per feature.
type Tree struct {
	classification bool
	classes        int
	maxDepth       int
	minLeaf        int
	maxFeatures    int
	balanced       bool
	rng            *rand.Rand

	nodes      []treeNode
	importance []float64
	weights    []float64
	fitted     bool
}

func NewTree(cfg Config) (*Tree, error) {
	t := &Tree{
		classification: cfg.classification(),
		classes:        cfg.Classes,
		maxDepth:       int(cfg.Model.Hyper("max_depth", 8)),
		minLeaf:        max(1, int(cfg.Model.Hyper("min_samples_leaf", 1))),
		maxFeatures:    int(cfg.Model.Hyper("max_features", 0)),
		balanced:       cfg.Model.Hyper("balanced", 0) > 0,
		rng:            newRand(int64(cfg.Model.Hyper("seed", 42))),
	}
	if t.classification && t.classes < 2 {
		t.classes = 2
	}
	return t, nil
}

func (t *Tree) Fit(X [][]float64, y []float64) error {
	if _, err := checkShape(X, y); err != nil {
		return err
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.fitIndices(X, y, idx)
}

// fitIndices grows the tree on the rows in idx, which may repeat rows.
func (t *Tree) fitIndices(X [][]float64, y []float64, idx []int) error {
	if len(idx) == 0 {
		return ErrEmptyInput
	}
	p := len(X[0])
	t.nodes = t.nodes[:0]
	t.importance = make([]float64, p)
	t.weights = make([]float64, len(X))
	if t.classification {
		cw := classWeights(y, t.classes, t.balanced)
		for i, v := range y {
			t.weights[i] = cw[int(v)]
		}
	} else {
		for i := range t.weights {
			t.weights[i] = 1
		}
	}
	t.build(X, y, idx, 0)
	t.fitted = true
	return nil
}

type splitStats struct {
	weight float64
	sum    float64
	sumSq  float64
	counts []float64
}

func (t *Tree) newStats() splitStats {
	s := splitStats{}
	if t.classification {
		s.counts = make([]float64, t.classes)
	}
	return s
}

func (t *Tree) add(s *splitStats, i int, y []float64, sign float64) {
	w := t.weights[i] * sign
	s.weight += w
	if t.classification {
		s.counts[int(y[i])] += w
		return
	}
	s.sum += w * y[i]
	s.sumSq += w * y[i] * y[i]
}

// impurity is weighted: W * gini, or the sum of squared errors.
func (t *Tree) impurity(s splitStats) float64 {
	if s.weight <= 0 {
		return 0
	}
	if t.classification {
		sq := 0.0
		for _, c := range s.counts {
			sq += c * c
		}
		return s.weight - sq/s.weight
	}
	return s.sumSq - s.sum*s.sum/s.weight
}

func (t *Tree) leafValue(s splitStats) float64 {
	if t.classification {
		return float64(argmax(s.counts))
	}
	if s.weight == 0 {
		return 0
	}
	return s.sum / s.weight
}

func (t *Tree) build(X [][]float64, y []float64, idx []int, depth int) int {
	stats := t.newStats()
	for _, i := range idx {
		t.add(&stats, i, y, 1)
	}
	parentImp := t.impurity(stats)

	nodeID := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{feature: -1, value: t.leafValue(stats)})

	if depth >= t.maxDepth || len(idx) < 2*t.minLeaf || parentImp <= 1e-12 {
		return nodeID
	}

	feature, threshold, gain := t.bestSplit(X, y, idx, stats, parentImp)
	if feature < 0 {
		return nodeID
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	t.importance[feature] += gain

	l := t.build(X, y, left, depth+1)
	r := t.build(X, y, right, depth+1)
	t.nodes[nodeID].feature = feature
	t.nodes[nodeID].threshold = threshold
	t.nodes[nodeID].left = l
	t.nodes[nodeID].right = r
	return nodeID
}

// candidateFeatures returns the feature visiting order and how many
// non-constant features to evaluate.
func (t *Tree) candidateFeatures(p int) ([]int, int) {
	if t.maxFeatures <= 0 || t.maxFeatures >= p {
		out := make([]int, p)
		for j := range out {
			out[j] = j
		}
		return out, p
	}
	return t.rng.Perm(p), t.maxFeatures
}

func (t *Tree) bestSplit(X [][]float64, y []float64, idx []int, total splitStats, parentImp float64) (int, float64, float64) {
	bestFeature, bestThreshold, bestGain := -1, 0.0, 1e-12
	sorted := make([]int, len(idx))

	order, budget := t.candidateFeatures(len(X[0]))
	for _, f := range order {
		if budget == 0 {
			break
		}
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, b int) int {
			switch {
			case X[a][f] < X[b][f]:
				return -1
			case X[a][f] > X[b][f]:
				return 1
			default:
				return 0
			}
		})

		if X[sorted[0]][f] == X[sorted[len(sorted)-1]][f] {
			continue
		}
		budget--

		left := t.newStats()
		right := t.newStats()
		right.weight, right.sum, right.sumSq = total.weight, total.sum, total.sumSq
		if t.classification {
			copy(right.counts, total.counts)
		}

		for pos := 1; pos < len(sorted); pos++ {
			i := sorted[pos-1]
			t.add(&left, i, y, 1)
			t.add(&right, i, y, -1)
			if pos < t.minLeaf || len(sorted)-pos < t.minLeaf {
				continue
			}
			lo, hi := X[i][f], X[sorted[pos]][f]
			if lo == hi {
				continue
			}
			gain := parentImp - t.impurity(left) - t.impurity(right)
			if gain > bestGain {
				bestFeature, bestThreshold, bestGain = f, lo+(hi-lo)/2, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (t *Tree) predictRow(row []float64) float64 {
	n := 0
	for t.nodes[n].feature >= 0 {
		if row[t.nodes[n].feature] <= t.nodes[n].threshold {
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	return t.nodes[n].value
}

func (t *Tree) Predict(X [][]float64) ([]float64, error) {
	if !t.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(t.importance) {
			return nil, ErrShapeMismatch
		}
		out[i] = t.predictRow(row)
	}
	return out, nil
}

// Importances returns the raw impurity decrease per feature.
func (t *Tree) Importances() []float64 {
	return slices.Clone(t.importance)
}
