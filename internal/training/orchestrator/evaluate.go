package orchestrator

import (
	"slices"

	"fedlearn/internal/ml"
	"fedlearn/internal/pipeline"
)

// evaluate computes the pipeline's metric set on one partition. The confusion
// matrix is returned separately and is nil unless requested.
func evaluate(spec pipeline.Spec, yTrue, yPred []float64, classes int) (map[string]float64, [][]int) {
	scores := make(map[string]float64, len(spec.Metrics))
	want := func(m pipeline.Metric) bool { return slices.Contains(spec.Metrics, m) }

	if spec.Task == pipeline.TaskClassification {
		cm := ml.ConfusionMatrix(yTrue, yPred, classes)
		precision, recall, f1 := ml.PrecisionRecallF1(cm)
		if want(pipeline.MetricAccuracy) {
			scores[string(pipeline.MetricAccuracy)] = ml.Accuracy(yTrue, yPred)
		}
		if want(pipeline.MetricPrecision) {
			scores[string(pipeline.MetricPrecision)] = precision
		}
		if want(pipeline.MetricRecall) {
			scores[string(pipeline.MetricRecall)] = recall
		}
		if want(pipeline.MetricF1) {
			scores[string(pipeline.MetricF1)] = f1
		}
		if !want(pipeline.MetricConfusionMatrix) {
			cm = nil
		}
		return scores, cm
	}

	if want(pipeline.MetricRMSE) {
		scores[string(pipeline.MetricRMSE)] = ml.RMSE(yTrue, yPred)
	}
	if want(pipeline.MetricMAE) {
		scores[string(pipeline.MetricMAE)] = ml.MAE(yTrue, yPred)
	}
	if want(pipeline.MetricR2) {
		scores[string(pipeline.MetricR2)] = ml.R2(yTrue, yPred)
	}
	return scores, nil
}

// averageScores is the per-metric mean across partitions.
func averageScores(folds []map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	if len(folds) == 0 {
		return out
	}
	for _, f := range folds {
		for k, v := range f {
			out[k] += v
		}
	}
	for k := range out {
		out[k] /= float64(len(folds))
	}
	return out
}

// addConfusion sums confusion matrices across partitions.
func addConfusion(acc, cm [][]int) [][]int {
	if cm == nil {
		return acc
	}
	if acc == nil {
		acc = make([][]int, len(cm))
		for i := range cm {
			acc[i] = make([]int, len(cm[i]))
		}
	}
	for i := range cm {
		for j := range cm[i] {
			acc[i][j] += cm[i][j]
		}
	}
	return acc
}
