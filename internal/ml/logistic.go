package ml

import (
	"fmt"
	"math"
)

// Logistic is multinomial (softmax) logistic regression trained by
// full-batch gradient descent with L2 regularization.
type Logistic struct {
	classes      int
	learningRate float64
	maxIter      int
	l2           float64
	balanced     bool

	weights [][]float64 // classes x features
	bias    []float64
	fitted  bool
}

func NewLogistic(cfg Config) (*Logistic, error) {
	if !cfg.classification() {
		return nil, fmt.Errorf("logistic family supports classification only, got %s", cfg.Task)
	}
	if cfg.Classes < 2 {
		return nil, fmt.Errorf("logistic regression needs at least 2 classes, got %d", cfg.Classes)
	}
	return &Logistic{
		classes:      cfg.Classes,
		learningRate: cfg.Model.Hyper("learning_rate", 0.1),
		maxIter:      int(cfg.Model.Hyper("max_iter", 500)),
		l2:           cfg.Model.Hyper("l2", 1e-3),
		balanced:     cfg.Model.Hyper("balanced", 0) > 0,
	}, nil
}

func (m *Logistic) Fit(X [][]float64, y []float64) error {
	p, err := checkShape(X, y)
	if err != nil {
		return err
	}
	k := m.classes
	cw := classWeights(y, k, m.balanced)
	total := 0.0
	for _, v := range y {
		total += cw[int(v)]
	}
	if total == 0 {
		return ErrEmptyInput
	}

	m.weights = make([][]float64, k)
	for c := range m.weights {
		m.weights[c] = make([]float64, p)
	}
	m.bias = make([]float64, k)

	gradW := make([][]float64, k)
	for c := range gradW {
		gradW[c] = make([]float64, p)
	}
	gradB := make([]float64, k)
	probs := make([]float64, k)

	for iter := 0; iter < m.maxIter; iter++ {
		for c := range gradW {
			clear(gradW[c])
		}
		clear(gradB)

		for i, row := range X {
			m.softmax(row, probs)
			label := int(y[i])
			w := cw[label]
			for c := 0; c < k; c++ {
				diff := probs[c]
				if c == label {
					diff -= 1
				}
				diff *= w
				gradB[c] += diff
				g := gradW[c]
				for j, x := range row {
					g[j] += diff * x
				}
			}
		}

		maxStep := 0.0
		for c := 0; c < k; c++ {
			for j := 0; j < p; j++ {
				step := m.learningRate * (gradW[c][j]/total + m.l2*m.weights[c][j])
				m.weights[c][j] -= step
				maxStep = math.Max(maxStep, math.Abs(step))
			}
			step := m.learningRate * gradB[c] / total
			m.bias[c] -= step
			maxStep = math.Max(maxStep, math.Abs(step))
		}
		if maxStep < 1e-7 {
			break
		}
	}
	m.fitted = true
	return nil
}

// softmax writes class probabilities for row into out.
func (m *Logistic) softmax(row, out []float64) {
	maxZ := math.Inf(-1)
	for c := range out {
		z := m.bias[c]
		for j, x := range row {
			z += m.weights[c][j] * x
		}
		out[c] = z
		maxZ = math.Max(maxZ, z)
	}
	sum := 0.0
	for c := range out {
		out[c] = math.Exp(out[c] - maxZ)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
}

func (m *Logistic) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	probs := make([]float64, m.classes)
	for i, row := range X {
		if len(row) != len(m.weights[0]) {
			return nil, ErrShapeMismatch
		}
		m.softmax(row, probs)
		out[i] = float64(argmax(probs))
	}
	return out, nil
}

// Importances are coefficient magnitudes averaged over classes.
func (m *Logistic) Importances() []float64 {
	if len(m.weights) == 0 {
		return nil
	}
	out := make([]float64, len(m.weights[0]))
	for _, w := range m.weights {
		for j, v := range w {
			out[j] += math.Abs(v) / float64(len(m.weights))
		}
	}
	return out
}
