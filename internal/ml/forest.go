package ml

import (
	"math"

	"golang.org/x/sync/errgroup"

	"fedlearn/internal/pipeline"
)

// Forest bags CART trees over bootstrap samples with per-split feature
// subsampling.
type Forest struct {
	cfg       Config
	nTrees    int
	seed      int64
	trees     []*Tree
	nFeatures int
	fitted    bool
}

func NewForest(cfg Config) (*Forest, error) {
	return &Forest{
		cfg:    cfg,
		nTrees: max(1, int(cfg.Model.Hyper("n_estimators", 100))),
		seed:   int64(cfg.Model.Hyper("seed", 42)),
	}, nil
}

func (f *Forest) maxFeatures(p int) int {
	if f.cfg.classification() {
		return max(1, int(math.Sqrt(float64(p))))
	}
	return max(1, p/3)
}

func (f *Forest) Fit(X [][]float64, y []float64) error {
	p, err := checkShape(X, y)
	if err != nil {
		return err
	}
	n := len(X)
	f.nFeatures = p
	f.trees = make([]*Tree, f.nTrees)

	// Bootstrap samples are drawn up front so results do not depend on
	// goroutine scheduling.
	rng := newRand(f.seed)
	samples := make([][]int, f.nTrees)
	for b := range samples {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.IntN(n)
		}
		samples[b] = idx
	}

	var g errgroup.Group
	g.SetLimit(f.cfg.workers())
	for b := range f.trees {
		hyper := map[string]float64{
			"max_depth":        f.cfg.Model.Hyper("max_depth", 8),
			"min_samples_leaf": f.cfg.Model.Hyper("min_samples_leaf", 1),
			"balanced":         f.cfg.Model.Hyper("balanced", 0),
			"max_features":     float64(f.maxFeatures(p)),
			"seed":             float64(f.seed + int64(b) + 1),
		}
		tree, err := NewTree(Config{
			Task:    f.cfg.Task,
			Classes: f.cfg.Classes,
			Model:   pipeline.Model{Family: pipeline.FamilyTree, Hyperparameters: hyper},
		})
		if err != nil {
			return err
		}
		f.trees[b] = tree
		g.Go(func() error {
			return tree.fitIndices(X, y, samples[b])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.fitted = true
	return nil
}

func (f *Forest) Predict(X [][]float64) ([]float64, error) {
	if !f.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	if f.cfg.classification() {
		votes := make([]float64, max(2, f.cfg.Classes))
		for i, row := range X {
			if len(row) != f.nFeatures {
				return nil, ErrShapeMismatch
			}
			clear(votes)
			for _, t := range f.trees {
				votes[int(t.predictRow(row))]++
			}
			out[i] = float64(argmax(votes))
		}
		return out, nil
	}
	for i, row := range X {
		if len(row) != f.nFeatures {
			return nil, ErrShapeMismatch
		}
		sum := 0.0
		for _, t := range f.trees {
			sum += t.predictRow(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}

// Importances average each tree's normalized impurity decrease.
func (f *Forest) Importances() []float64 {
	out := make([]float64, f.nFeatures)
	for _, t := range f.trees {
		total := 0.0
		for _, v := range t.importance {
			total += v
		}
		if total == 0 {
			continue
		}
		for j, v := range t.importance {
			out[j] += v / total / float64(len(f.trees))
		}
	}
	return out
}
