package pipeline

import (
	"fmt"
	"math"

	"fedlearn/internal/profile"
)

const (
	stageTask       = "task"
	stageFeatures   = "features"
	stageImputation = "imputation"
	stageScaling    = "scaling"
	stageOutliers   = "outliers"
	stageEncoding   = "encoding"
	stageExpansion  = "expansion"
	stageSelection  = "selection"
	stageModels     = "models"
	stageValidation = "validation"
	stageMetrics    = "metrics"
)

// ValidateTask checks that the profile can support task for target.
func ValidateTask(p *profile.DatasetProfile, target string, task TaskType) error {
	if _, err := ParseTaskType(string(task)); err != nil {
		return err
	}
	if p == nil || target == "" || !p.HasTarget(target) {
		return fmt.Errorf("%w: target %q is not in the dataset", ErrInvalidTask, target)
	}
	t := p.Target
	switch task {
	case TaskRegression:
		if !t.IsNumeric {
			return fmt.Errorf("%w: regression needs a numeric target, %q is %s", ErrInvalidTask, target, t.DType)
		}
	case TaskClassification:
		if t.DistinctCount < 2 {
			return fmt.Errorf("%w: classification needs at least two classes in %q", ErrInvalidTask, target)
		}
	}
	return nil
}

// SelectFeatures keeps columns that can be preprocessed and records why the
// others were dropped.
func (r Rules) SelectFeatures(cols []profile.Column) ([]profile.Column, []DroppedFeature, []Decision) {
	var kept []profile.Column
	var dropped []DroppedFeature
	var log []Decision
	drop := func(name, reason string) {
		dropped = append(dropped, DroppedFeature{Name: name, Reason: reason})
		log = append(log, Decision{Stage: stageFeatures, Feature: name, Choice: "drop", Reason: reason})
	}
	for _, c := range cols {
		switch {
		case c.AllMissing:
			drop(c.Name, "all values missing")
		case c.Constant:
			drop(c.Name, "single distinct value")
		case c.DType == profile.DTypeDatetime:
			drop(c.Name, "datetime columns are not featurized")
		case c.DType == profile.DTypeText:
			drop(c.Name, "free text columns are not featurized")
		case c.MissingFraction > r.MaxMissingFraction:
			drop(c.Name, fmt.Sprintf("%.0f%% missing exceeds %.0f%%", c.MissingFraction*100, r.MaxMissingFraction*100))
		default:
			kept = append(kept, c)
		}
	}
	return kept, dropped, log
}

// DecideImputation picks the fill strategy for a kept column.
func (r Rules) DecideImputation(c profile.Column) (Imputation, Decision) {
	d := Decision{Stage: stageImputation, Feature: c.Name}
	switch {
	case c.DType != profile.DTypeNumeric:
		d.Choice, d.Reason = string(ImputeMostFrequent), "categorical values"
	case c.Numeric != nil && math.Abs(c.Numeric.Skew) > r.SkewThreshold:
		d.Choice, d.Reason = string(ImputeMedian), fmt.Sprintf("skew %.2f exceeds %.1f", c.Numeric.Skew, r.SkewThreshold)
	default:
		d.Choice, d.Reason = string(ImputeMean), "approximately symmetric distribution"
	}
	return Imputation(d.Choice), d
}

// DecideScaling picks the scaler for a numeric column.
func (r Rules) DecideScaling(c profile.Column) (Scaling, Decision) {
	d := Decision{Stage: stageScaling, Feature: c.Name}
	switch {
	case c.DType != profile.DTypeNumeric:
		d.Choice, d.Reason = string(ScalingNone), "not numeric"
	case c.Numeric != nil && math.Abs(c.Numeric.Skew) > r.SkewThreshold:
		d.Choice, d.Reason = string(ScalingRobust), fmt.Sprintf("heavy tail, skew %.2f", c.Numeric.Skew)
	default:
		d.Choice, d.Reason = string(ScalingStandard), "default for numeric features"
	}
	return Scaling(d.Choice), d
}

// DecideClipping enables IQR clipping for outlier-heavy numeric columns.
func (r Rules) DecideClipping(c profile.Column) (bool, *Decision) {
	if c.DType != profile.DTypeNumeric || c.Numeric == nil || c.Numeric.OutlierFraction <= r.OutlierClipFraction {
		return false, nil
	}
	return true, &Decision{
		Stage:   stageOutliers,
		Feature: c.Name,
		Choice:  "clip_iqr",
		Reason:  fmt.Sprintf("%.1f%% outliers exceeds %.0f%%", c.Numeric.OutlierFraction*100, r.OutlierClipFraction*100),
	}
}

// DecideEncoding picks the encoder for a categorical column by cardinality.
func (r Rules) DecideEncoding(c profile.Column) (Encoding, Decision) {
	d := Decision{Stage: stageEncoding, Feature: c.Name}
	switch {
	case c.DType == profile.DTypeNumeric:
		d.Choice, d.Reason = string(EncodingNone), "numeric"
	case c.DistinctCount <= r.OneHotMaxCardinality:
		d.Choice, d.Reason = string(EncodingOneHot), fmt.Sprintf("%d categories within one-hot ceiling %d", c.DistinctCount, r.OneHotMaxCardinality)
	case c.DistinctCount <= r.OrdinalMaxCardinality:
		d.Choice, d.Reason = string(EncodingOrdinal), fmt.Sprintf("%d categories above one-hot ceiling", c.DistinctCount)
	default:
		d.Choice, d.Reason = string(EncodingFrequency), fmt.Sprintf("%d categories, frequency keeps one column", c.DistinctCount)
	}
	return Encoding(d.Choice), d
}

// DecideExpansion enables polynomial terms for small numeric feature sets.
func (r Rules) DecideExpansion(numeric []string) (Expansion, Decision) {
	d := Decision{Stage: stageExpansion}
	n := len(numeric)
	if n == 0 || n > r.ExpansionMaxNumeric {
		d.Choice = "skip"
		d.Reason = fmt.Sprintf("%d numeric features outside 1..%d", n, r.ExpansionMaxNumeric)
		return Expansion{}, d
	}
	d.Choice = "polynomial_degree_2"
	d.Reason = fmt.Sprintf("%d numeric features, %d extra terms", n, expansionTerms(n))
	return Expansion{Enabled: true, Degree: 2, Features: append([]string(nil), numeric...)}, d
}

// expansionTerms is the number of degree-2 terms (squares and pairwise products).
func expansionTerms(n int) int {
	return n * (n + 1) / 2
}

// EncodedWidth estimates the feature-matrix width after encoding and expansion.
func EncodedWidth(features []Feature, exp Expansion) int {
	width := 0
	for _, f := range features {
		if f.Encoding == EncodingOneHot {
			width += f.Cardinality
		} else {
			width++
		}
	}
	if exp.Enabled {
		width += expansionTerms(len(exp.Features))
	}
	return width
}

// DecideSelection enables feature selection for wide, short tables.
func (r Rules) DecideSelection(width, rows int, task TaskType) (Selection, Decision) {
	d := Decision{Stage: stageSelection}
	limit := r.SelectionRowFraction * float64(rows)
	if float64(width) <= limit {
		d.Choice = "skip"
		d.Reason = fmt.Sprintf("width %d within %.0f", width, limit)
		return Selection{}, d
	}
	method := SelectionANOVA
	if task == TaskRegression {
		method = SelectionCorrelation
	}
	k := max(1, int(limit))
	d.Choice = string(method)
	d.Reason = fmt.Sprintf("width %d exceeds %.0f, keep %d", width, limit, k)
	return Selection{Enabled: true, Method: method, K: k}, d
}

// DecideModels returns the fixed candidate set with size-scaled hyperparameters.
func (r Rules) DecideModels(rows int, task TaskType, imbalance float64) ([]Model, []Decision) {
	depth := math.Ceil(math.Log2(float64(max(rows, 2))))
	depth = math.Max(2, math.Min(depth, float64(r.MaxTreeDepth)))
	trees := float64(min(max(rows/10, r.MinTrees), r.MaxTrees))
	leaf := float64(max(1, rows/200))

	balanced := 0.0
	var log []Decision
	if task == TaskClassification && imbalance > r.ImbalanceRatio {
		balanced = 1
		log = append(log, Decision{
			Stage:  stageModels,
			Choice: "balanced_class_weights",
			Reason: fmt.Sprintf("class imbalance ratio %.1f exceeds %.1f", imbalance, r.ImbalanceRatio),
		})
	}
	seed := float64(r.Seed)

	var models []Model
	if task == TaskClassification {
		models = []Model{
			{Name: "logistic_regression", Family: FamilyLogistic, Hyperparameters: map[string]float64{
				"learning_rate": 0.1, "max_iter": 500, "l2": 1e-3, "balanced": balanced,
			}},
			{Name: "decision_tree", Family: FamilyTree, Hyperparameters: map[string]float64{
				"max_depth": depth, "min_samples_leaf": leaf, "balanced": balanced, "seed": seed,
			}},
			{Name: "random_forest", Family: FamilyForest, Hyperparameters: map[string]float64{
				"n_estimators": trees, "max_depth": depth, "min_samples_leaf": leaf, "balanced": balanced, "seed": seed,
			}},
		}
	} else {
		models = []Model{
			{Name: "linear_regression", Family: FamilyLinear, Hyperparameters: map[string]float64{
				"l2": 1e-6,
			}},
			{Name: "decision_tree", Family: FamilyTree, Hyperparameters: map[string]float64{
				"max_depth": depth, "min_samples_leaf": leaf, "seed": seed,
			}},
			{Name: "random_forest", Family: FamilyForest, Hyperparameters: map[string]float64{
				"n_estimators": trees, "max_depth": depth, "min_samples_leaf": leaf, "seed": seed,
			}},
		}
	}
	log = append(log, Decision{
		Stage:  stageModels,
		Choice: fmt.Sprintf("%s, %s, %s", models[0].Name, models[1].Name, models[2].Name),
		Reason: fmt.Sprintf("%d rows: max_depth %.0f, %.0f trees", rows, depth, trees),
	})
	return models, log
}

// DecideValidation picks k-fold for small data and holdout otherwise.
func (r Rules) DecideValidation(rows int, task TaskType) (Validation, Decision, error) {
	stratify := task == TaskClassification
	if rows < r.MinRows {
		return Validation{}, Decision{}, fmt.Errorf("%w: %d labelled rows, need at least %d", ErrInsufficientData, rows, r.MinRows)
	}
	if rows < r.KFoldMaxRows {
		if rows < 2*r.Folds {
			return Validation{}, Decision{}, fmt.Errorf("%w: %d rows cannot fill %d folds", ErrInsufficientData, rows, r.Folds)
		}
		v := Validation{Strategy: ValidationKFold, Folds: r.Folds, Stratify: stratify, Seed: r.Seed}
		return v, Decision{
			Stage:  stageValidation,
			Choice: fmt.Sprintf("kfold_%d", r.Folds),
			Reason: fmt.Sprintf("%d rows below %d", rows, r.KFoldMaxRows),
		}, nil
	}
	if int(float64(rows)*r.TestFraction) < 2 {
		return Validation{}, Decision{}, fmt.Errorf("%w: holdout partition would be empty", ErrInsufficientData)
	}
	v := Validation{Strategy: ValidationHoldout, TestFraction: r.TestFraction, Stratify: stratify, Seed: r.Seed}
	return v, Decision{
		Stage:  stageValidation,
		Choice: fmt.Sprintf("holdout_%.0f", r.TestFraction*100),
		Reason: fmt.Sprintf("%d rows at or above %d", rows, r.KFoldMaxRows),
	}, nil
}

// DecideMetrics returns the ordered metric set for task.
func DecideMetrics(task TaskType) ([]Metric, Decision) {
	if task == TaskClassification {
		return []Metric{MetricAccuracy, MetricPrecision, MetricRecall, MetricF1, MetricConfusionMatrix},
			Decision{Stage: stageMetrics, Choice: "classification", Reason: "task type"}
	}
	return []Metric{MetricRMSE, MetricMAE, MetricR2},
		Decision{Stage: stageMetrics, Choice: "regression", Reason: "task type"}
}
