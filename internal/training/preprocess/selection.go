package preprocess

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fedlearn/internal/pipeline"
)

// selectColumns keeps the K highest scoring columns, returned in their
// original order. Ties keep the earlier column.
func selectColumns(X [][]float64, y []float64, sel pipeline.Selection) []int {
	width := len(X[0])
	scores := make([]float64, width)
	col := make([]float64, len(X))
	for j := 0; j < width; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		switch sel.Method {
		case pipeline.SelectionANOVA:
			scores[j] = anovaF(col, y)
		default:
			scores[j] = absCorrelation(col, y)
		}
	}

	order := make([]int, width)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	kept := append([]int(nil), order[:sel.K]...)
	sort.Ints(kept)
	return kept
}

func absCorrelation(x, y []float64) float64 {
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return math.Abs(c)
}

// anovaF is the one-way ANOVA F statistic of x grouped by class label y.
// Degenerate groupings score 0; perfectly separating columns score +Inf.
func anovaF(x, y []float64) float64 {
	groups := make(map[float64][]float64)
	var labels []float64
	for i, label := range y {
		if _, ok := groups[label]; !ok {
			labels = append(labels, label)
		}
		groups[label] = append(groups[label], x[i])
	}
	k, n := len(groups), len(x)
	if k < 2 || n <= k {
		return 0
	}
	sort.Float64s(labels)
	grand := stat.Mean(x, nil)
	var between, within float64
	for _, label := range labels {
		g := groups[label]
		m := stat.Mean(g, nil)
		between += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			within += (v - m) * (v - m)
		}
	}
	if between == 0 {
		return 0
	}
	if within == 0 {
		return math.Inf(1)
	}
	return (between / float64(k-1)) / (within / float64(n-k))
}
