// Package ml implements the model families a pipeline can select.
//
// Every family satisfies Learner; families with a native notion of feature
// contribution also satisfy Importancer.
package ml

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"fedlearn/internal/pipeline"
)

var (
	ErrNotFitted     = errors.New("model is not fitted")
	ErrEmptyInput    = errors.New("no training rows")
	ErrShapeMismatch = errors.New("feature matrix and target lengths differ")
	ErrUnknownFamily = errors.New("unknown model family")
)

// Learner fits a model on a dense feature matrix. For classification, y
// holds class indices 0..Classes-1 and Predict returns class indices.
type Learner interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Importancer exposes raw, non-negative per-column contribution scores.
type Importancer interface {
	Importances() []float64
}

// Config parameterizes a learner.
type Config struct {
	Task    pipeline.TaskType
	Classes int
	Model   pipeline.Model
	// Workers bounds the goroutines an ensemble may fit with. Zero or one
	// fits serially, leaving concurrency to the caller.
	Workers int
}

func (c Config) workers() int {
	return max(1, c.Workers)
}

func (c Config) classification() bool {
	return c.Task == pipeline.TaskClassification
}

// Factory builds a learner for a config.
type Factory func(cfg Config) (Learner, error)

// Registry maps family tags to factories.
type Registry struct {
	factories map[pipeline.Family]Factory
}

// NewRegistry returns a registry with the built-in families.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[pipeline.Family]Factory)}
	r.Register(pipeline.FamilyLinear, func(cfg Config) (Learner, error) { return NewLinear(cfg) })
	r.Register(pipeline.FamilyLogistic, func(cfg Config) (Learner, error) { return NewLogistic(cfg) })
	r.Register(pipeline.FamilyTree, func(cfg Config) (Learner, error) { return NewTree(cfg) })
	r.Register(pipeline.FamilyForest, func(cfg Config) (Learner, error) { return NewForest(cfg) })
	return r
}

// Register adds or replaces a family.
func (r *Registry) Register(family pipeline.Family, f Factory) {
	r.factories[family] = f
}

// New builds the learner for cfg.Model.Family.
func (r *Registry) New(cfg Config) (Learner, error) {
	f, ok := r.factories[cfg.Model.Family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, cfg.Model.Family)
	}
	return f(cfg)
}

func checkShape(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyInput
	}
	if len(X) != len(y) {
		return 0, ErrShapeMismatch
	}
	p := len(X[0])
	for _, row := range X {
		if len(row) != p {
			return 0, fmt.Errorf("ragged feature matrix: %w", ErrShapeMismatch)
		}
	}
	return p, nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// classWeights returns per-class weights; balanced weights are
// n / (classes * count) and absent classes get zero.
func classWeights(y []float64, classes int, balanced bool) []float64 {
	w := make([]float64, classes)
	if !balanced {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	counts := make([]float64, classes)
	for _, v := range y {
		counts[int(v)]++
	}
	for i, c := range counts {
		if c > 0 {
			w[i] = float64(len(y)) / (float64(classes) * c)
		}
	}
	return w
}

func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}
