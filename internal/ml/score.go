package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Accuracy is the share of exact matches.
func Accuracy(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// ConfusionMatrix counts [true][predicted] over classes labels.
func ConfusionMatrix(yTrue, yPred []float64, classes int) [][]int {
	cm := make([][]int, classes)
	for i := range cm {
		cm[i] = make([]int, classes)
	}
	for i := range yTrue {
		t, p := int(yTrue[i]), int(yPred[i])
		if t >= 0 && t < classes && p >= 0 && p < classes {
			cm[t][p]++
		}
	}
	return cm
}

// PrecisionRecallF1 scores the positive class (index 1) for binary problems
// and the support-weighted average for multiclass. Undefined ratios are 0.
func PrecisionRecallF1(cm [][]int) (precision, recall, f1 float64) {
	k := len(cm)
	if k == 2 {
		return classScores(cm, 1)
	}
	total := 0
	for c := 0; c < k; c++ {
		support := 0
		for _, v := range cm[c] {
			support += v
		}
		if support == 0 {
			continue
		}
		p, r, f := classScores(cm, c)
		precision += p * float64(support)
		recall += r * float64(support)
		f1 += f * float64(support)
		total += support
	}
	if total == 0 {
		return 0, 0, 0
	}
	n := float64(total)
	return precision / n, recall / n, f1 / n
}

func classScores(cm [][]int, c int) (precision, recall, f1 float64) {
	tp := cm[c][c]
	predicted, actual := 0, 0
	for i := range cm {
		predicted += cm[i][c]
		actual += cm[c][i]
	}
	if predicted > 0 {
		precision = float64(tp) / float64(predicted)
	}
	if actual > 0 {
		recall = float64(tp) / float64(actual)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// RMSE is the root mean squared error.
func RMSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(yTrue)))
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue))
}

// R2 is the coefficient of determination. A constant target scores 1 when
// predicted exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := stat.Mean(yTrue, nil)
	ssRes, ssTot := 0.0, 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		m := yTrue[i] - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
