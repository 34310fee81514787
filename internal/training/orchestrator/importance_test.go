package orchestrator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedlearn/internal/pipeline"
)

func TestNormalizeImportance(t *testing.T) {
	t.Run("sums to 100", func(t *testing.T) {
		out := NormalizeImportance(map[string]float64{"a": 1, "b": 3})
		assert.InDelta(t, 25, out["a"], 1e-9)
		assert.InDelta(t, 75, out["b"], 1e-9)
	})

	t.Run("all zero becomes uniform", func(t *testing.T) {
		out := NormalizeImportance(map[string]float64{"a": 0, "b": 0, "c": 0, "d": 0})
		for _, v := range out {
			assert.InDelta(t, 25, v, 1e-9)
		}
	})

	t.Run("negative and non-finite count as zero", func(t *testing.T) {
		out := NormalizeImportance(map[string]float64{"a": -4, "b": math.NaN(), "c": 2})
		assert.InDelta(t, 100, out["c"], 1e-9)
		assert.Zero(t, out["a"])
	})

	t.Run("empty stays empty", func(t *testing.T) {
		out := NormalizeImportance(nil)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
}

func TestAverageImportance(t *testing.T) {
	out := averageImportance([]map[string]float64{
		{"a": 100, "b": 0},
		{"a": 50, "b": 50},
	})
	assert.InDelta(t, 75, out["a"], 1e-9)
	assert.InDelta(t, 25, out["b"], 1e-9)
}

func TestPartitions(t *testing.T) {
	y := make([]float64, 50)
	for i := range y {
		if i%5 == 0 {
			y[i] = 1
		}
	}

	t.Run("stratified k-fold covers every row once", func(t *testing.T) {
		v := pipeline.Validation{Strategy: pipeline.ValidationKFold, Folds: 5, Stratify: true, Seed: 42}
		parts, err := partitions(v, y, true)
		require.NoError(t, err)
		require.Len(t, parts, 5)

		seen := make(map[int]int)
		for _, p := range parts {
			assert.Len(t, p.test, 10)
			assert.Len(t, p.train, 40)
			positives := 0
			for _, i := range p.test {
				seen[i]++
				positives += int(y[i])
			}
			assert.Equal(t, 2, positives, "each fold keeps the class ratio")
		}
		assert.Len(t, seen, 50)
	})

	t.Run("holdout is disjoint and seeded", func(t *testing.T) {
		v := pipeline.Validation{Strategy: pipeline.ValidationHoldout, TestFraction: 0.2, Seed: 42}
		a, err := partitions(v, y, false)
		require.NoError(t, err)
		b, err := partitions(v, y, false)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a[0].test, 10)

		train := make(map[int]bool)
		for _, i := range a[0].train {
			train[i] = true
		}
		for _, i := range a[0].test {
			assert.False(t, train[i])
		}
	})

	t.Run("too few rows", func(t *testing.T) {
		v := pipeline.Validation{Strategy: pipeline.ValidationKFold, Folds: 5}
		_, err := partitions(v, []float64{1, 2, 3}, false)
		assert.ErrorIs(t, err, pipeline.ErrInsufficientData)
	})
}
