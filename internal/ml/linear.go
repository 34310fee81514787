package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"fedlearn/internal/pipeline"
)

// Linear is ridge-regularized least squares solved through the normal
// equations. The intercept is not penalized.
type Linear struct {
	l2        float64
	coef      []float64
	intercept float64
	fitted    bool
}

func NewLinear(cfg Config) (*Linear, error) {
	if cfg.Task != pipeline.TaskRegression {
		return nil, fmt.Errorf("linear family supports regression only, got %s", cfg.Task)
	}
	return &Linear{l2: cfg.Model.Hyper("l2", 1e-6)}, nil
}

func (m *Linear) Fit(X [][]float64, y []float64) error {
	p, err := checkShape(X, y)
	if err != nil {
		return err
	}
	n := len(X)
	cols := p + 1

	design := mat.NewDense(n, cols, nil)
	for i, row := range X {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	target := mat.NewVecDense(n, append([]float64(nil), y...))

	var gram mat.Dense
	gram.Mul(design.T(), design)
	ridge := math.Max(m.l2, 1e-9) * float64(n)
	for j := 1; j < cols; j++ {
		gram.Set(j, j, gram.At(j, j)+ridge)
	}
	var rhs mat.VecDense
	rhs.MulVec(design.T(), target)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		return fmt.Errorf("solve normal equations: %w", err)
	}
	m.intercept = beta.AtVec(0)
	m.coef = make([]float64, p)
	for j := range m.coef {
		m.coef[j] = beta.AtVec(j + 1)
	}
	m.fitted = true
	return nil
}

func (m *Linear) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.coef) {
			return nil, ErrShapeMismatch
		}
		v := m.intercept
		for j, x := range row {
			v += m.coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}

// Importances are coefficient magnitudes.
func (m *Linear) Importances() []float64 {
	out := make([]float64, len(m.coef))
	for j, c := range m.coef {
		out[j] = math.Abs(c)
	}
	return out
}
