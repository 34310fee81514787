// Package explain turns a finished training run into a short plain-language
// narrative. Explanations are advisory: callers must never let an
// explanation failure change a run's outcome.
package explain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"fedlearn/internal/pipeline"
	"fedlearn/internal/training/models"
)

// Explainer produces a narrative for a run summary.
type Explainer interface {
	Explain(ctx context.Context, s Summary) (string, error)
}

// ModelSummary is the part of a model result an explainer may see.
type ModelSummary struct {
	Name        string
	Metrics     map[string]float64
	TopFeatures []FeatureWeight
	Error       string
}

type FeatureWeight struct {
	Name   string
	Weight float64
}

// Summary is everything an explainer receives. It carries no row data.
type Summary struct {
	Task          pipeline.TaskType
	Target        string
	RowCount      int
	Validation    pipeline.ValidationStrategy
	Status        models.RunStatus
	BestModel     string
	FailureReason string
	Models        []ModelSummary
}

const topFeatures = 5

// Summarize extracts the explainer input from a terminal run.
func Summarize(run *models.Run) Summary {
	s := Summary{
		Task:          run.Spec.Task,
		Target:        run.Spec.Target,
		RowCount:      run.Spec.RowCount,
		Validation:    run.Spec.Validation.Strategy,
		Status:        run.Status,
		BestModel:     run.BestModel,
		FailureReason: run.FailureReason,
	}
	for _, r := range run.Results {
		s.Models = append(s.Models, ModelSummary{
			Name:        r.Name,
			Metrics:     r.Metrics,
			TopFeatures: rankFeatures(r.Importance, topFeatures),
			Error:       r.Error,
		})
	}
	return s
}

// rankFeatures returns the n heaviest features, ties by name.
func rankFeatures(importance map[string]float64, n int) []FeatureWeight {
	out := make([]FeatureWeight, 0, len(importance))
	for name, w := range importance {
		out = append(out, FeatureWeight{Name: name, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (s Summary) best() (ModelSummary, bool) {
	for _, m := range s.Models {
		if m.Name == s.BestModel {
			return m, true
		}
	}
	return ModelSummary{}, false
}

// Fallback writes a deterministic narrative from the numbers alone.
type Fallback struct{}

func (Fallback) Explain(_ context.Context, s Summary) (string, error) {
	var b strings.Builder
	if s.Status == models.RunStatusFailed {
		fmt.Fprintf(&b, "Training for %q did not produce a usable model. %s.", s.Target, s.FailureReason)
		return b.String(), nil
	}

	best, ok := s.best()
	if !ok {
		return "", fmt.Errorf("best model %q missing from summary", s.BestModel)
	}
	fmt.Fprintf(&b, "We trained %d models to predict %q from %d rows. ", len(s.Models), s.Target, s.RowCount)
	fmt.Fprintf(&b, "The strongest was %s", best.Name)
	if s.Task == pipeline.TaskClassification {
		acc := best.Metrics[string(pipeline.MetricAccuracy)]
		fmt.Fprintf(&b, ", which labelled %.0f%% of held-out rows correctly (%s).", acc*100, accuracyBand(acc))
	} else {
		r2 := best.Metrics[string(pipeline.MetricR2)]
		fmt.Fprintf(&b, ", which explains %.0f%% of the variation in %s (%s).", math.Max(r2, 0)*100, s.Target, r2Band(r2))
	}
	if len(best.TopFeatures) > 0 {
		names := make([]string, 0, len(best.TopFeatures))
		for _, f := range best.TopFeatures[:min(3, len(best.TopFeatures))] {
			names = append(names, fmt.Sprintf("%s (%.1f%%)", f.Name, f.Weight))
		}
		fmt.Fprintf(&b, " The most influential inputs were %s.", strings.Join(names, ", "))
	}
	failed := 0
	for _, m := range s.Models {
		if m.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(&b, " %d of the candidate models failed and were skipped.", failed)
	}
	return b.String(), nil
}

func accuracyBand(acc float64) string {
	switch {
	case acc >= 0.9:
		return "excellent"
	case acc >= 0.75:
		return "good"
	case acc >= 0.6:
		return "fair"
	default:
		return "weak"
	}
}

func r2Band(r2 float64) string {
	switch {
	case r2 >= 0.8:
		return "strong fit"
	case r2 >= 0.5:
		return "moderate fit"
	case r2 >= 0.2:
		return "weak fit"
	default:
		return "little predictive power"
	}
}
