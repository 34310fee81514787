package profile

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fedlearn/internal/table"
)

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

func isDatetime(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// summarize computes the numeric summary; xs must be non-empty.
func summarize(xs []float64) *NumericSummary {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := &NumericSummary{
		Mean:   stat.Mean(sorted, nil),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.Std = finite(stat.StdDev(sorted, nil))
	}
	if s.Std > 0 && len(sorted) > 2 {
		s.Skew = finite(stat.Skew(sorted, nil))
		s.Kurtosis = finite(stat.ExKurtosis(sorted, nil))
	}
	s.OutlierFraction = outlierFraction(sorted, s.Q1, s.Q3)
	return s
}

// outlierFraction is the share of values outside the 1.5 IQR fences.
func outlierFraction(xs []float64, q1, q3 float64) float64 {
	iqr := q3 - q1
	if iqr == 0 {
		return 0
	}
	lo, hi := q1-1.5*iqr, q3+1.5*iqr
	out := 0
	for _, x := range xs {
		if x < lo || x > hi {
			out++
		}
	}
	return float64(out) / float64(len(xs))
}

// correlation is the Pearson correlation between a feature and the target
// over rows where both are present.
func correlation(raw []string, target []float64, targetOK []bool) *float64 {
	var xs, ys []float64
	ti := 0
	for i, v := range raw {
		if !targetOK[i] {
			continue
		}
		y := target[ti]
		ti++
		if x, ok := table.ParseFloat(v); ok {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 3 {
		return nil
	}
	if stat.StdDev(xs, nil) == 0 || stat.StdDev(ys, nil) == 0 {
		return nil
	}
	c := finite(stat.Correlation(xs, ys, nil))
	return &c
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
