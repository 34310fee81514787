package models

import (
	"fedlearn/internal/pipeline"
)

// ModelResult is one model's outcome within a run. Error is set iff the
// model failed; failed models carry no metrics.
type ModelResult struct {
	Name            string             `json:"model_name"`
	Family          pipeline.Family    `json:"family"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	ConfusionMatrix [][]int            `json:"confusion_matrix,omitempty"`
	Importance      map[string]float64 `json:"normalized_feature_importance"`
	Error           string             `json:"error,omitempty"`
	DurationMillis  int64              `json:"duration_ms"`
}

func (m ModelResult) Failed() bool {
	return m.Error != ""
}

// BestModel picks the successful model with the highest accuracy
// (classification) or R2 (regression). Ties keep spec order.
func BestModel(task pipeline.TaskType, results []ModelResult) string {
	key := string(pipeline.MetricR2)
	if task == pipeline.TaskClassification {
		key = string(pipeline.MetricAccuracy)
	}
	best, bestScore := "", 0.0
	for _, res := range results {
		if res.Failed() {
			continue
		}
		score, ok := res.Metrics[key]
		if !ok {
			continue
		}
		if best == "" || score > bestScore {
			best, bestScore = res.Name, score
		}
	}
	return best
}
