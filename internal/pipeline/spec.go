// Package pipeline turns a dataset profile and a task declaration into a
// reproducible training pipeline specification.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// SpecVersion is bumped whenever generated specs change shape or rules.
const SpecVersion = 1

type TaskType string

const (
	TaskClassification TaskType = "classification"
	TaskRegression     TaskType = "regression"
)

// ParseTaskType accepts the two supported tasks, case-insensitively.
func ParseTaskType(s string) (TaskType, error) {
	switch t := TaskType(strings.ToLower(strings.TrimSpace(s))); t {
	case TaskClassification, TaskRegression:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unrecognized task type %q", ErrInvalidTask, s)
	}
}

type FeatureKind string

const (
	KindNumeric     FeatureKind = "numeric"
	KindCategorical FeatureKind = "categorical"
)

type Scaling string

const (
	ScalingNone     Scaling = "none"
	ScalingStandard Scaling = "standard"
	ScalingRobust   Scaling = "robust"
)

type Encoding string

const (
	EncodingNone      Encoding = "none"
	EncodingOneHot    Encoding = "onehot"
	EncodingOrdinal   Encoding = "ordinal"
	EncodingFrequency Encoding = "frequency"
)

type Imputation string

const (
	ImputeMean         Imputation = "mean"
	ImputeMedian       Imputation = "median"
	ImputeMostFrequent Imputation = "most_frequent"
)

// Family tags a model implementation.
type Family string

const (
	FamilyLinear   Family = "linear"
	FamilyLogistic Family = "logistic"
	FamilyTree     Family = "tree"
	FamilyForest   Family = "forest"
)

type ValidationStrategy string

const (
	ValidationHoldout ValidationStrategy = "holdout"
	ValidationKFold   ValidationStrategy = "kfold"
)

type SelectionMethod string

const (
	SelectionANOVA       SelectionMethod = "anova_f"
	SelectionCorrelation SelectionMethod = "correlation"
)

type Metric string

const (
	MetricAccuracy        Metric = "accuracy"
	MetricPrecision       Metric = "precision"
	MetricRecall          Metric = "recall"
	MetricF1              Metric = "f1"
	MetricConfusionMatrix Metric = "confusion_matrix"
	MetricRMSE            Metric = "rmse"
	MetricMAE             Metric = "mae"
	MetricR2              Metric = "r2"
)

// Feature is the preprocessing plan for one input column.
type Feature struct {
	Name         string      `json:"name"`
	Kind         FeatureKind `json:"kind"`
	Imputation   Imputation  `json:"imputation"`
	Scaling      Scaling     `json:"scaling"`
	Encoding     Encoding    `json:"encoding"`
	ClipOutliers bool        `json:"clip_outliers"`
	Cardinality  int         `json:"cardinality,omitempty"`
}

type DroppedFeature struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type Preprocessing struct {
	Features []Feature        `json:"features"`
	Dropped  []DroppedFeature `json:"dropped"`
}

// Expansion adds degree-2 polynomial and interaction terms over Features.
type Expansion struct {
	Enabled  bool     `json:"enabled"`
	Degree   int      `json:"degree,omitempty"`
	Features []string `json:"features,omitempty"`
}

type Selection struct {
	Enabled bool            `json:"enabled"`
	Method  SelectionMethod `json:"method,omitempty"`
	K       int             `json:"k,omitempty"`
}

type FeatureEngineering struct {
	Expansion Expansion `json:"expansion"`
	Selection Selection `json:"selection"`
}

type Model struct {
	Name            string             `json:"name"`
	Family          Family             `json:"family"`
	Hyperparameters map[string]float64 `json:"hyperparameters"`
}

type Validation struct {
	Strategy     ValidationStrategy `json:"strategy"`
	TestFraction float64            `json:"test_fraction,omitempty"`
	Folds        int                `json:"folds,omitempty"`
	Stratify     bool               `json:"stratify"`
	Seed         int64              `json:"seed"`
}

// Decision records one rule firing, for audit and explanation.
type Decision struct {
	Stage   string `json:"stage"`
	Feature string `json:"feature,omitempty"`
	Choice  string `json:"choice"`
	Reason  string `json:"reason"`
}

// Spec is the generated pipeline. Treat it as immutable; use Clone before
// handing it to code that may modify it.
type Spec struct {
	Version            int                `json:"version"`
	Task               TaskType           `json:"task"`
	Target             string             `json:"target"`
	RowCount           int                `json:"row_count"`
	Preprocessing      Preprocessing      `json:"preprocessing"`
	FeatureEngineering FeatureEngineering `json:"feature_engineering"`
	Models             []Model            `json:"models"`
	Validation         Validation         `json:"validation"`
	Metrics            []Metric           `json:"metrics"`
	Decisions          []Decision         `json:"decisions"`
}

// Feature looks up a planned feature by column name.
func (s Spec) Feature(name string) (Feature, bool) {
	for _, f := range s.Preprocessing.Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// Clone returns a deep copy.
func (s Spec) Clone() Spec {
	out := s
	out.Preprocessing.Features = slices.Clone(s.Preprocessing.Features)
	out.Preprocessing.Dropped = slices.Clone(s.Preprocessing.Dropped)
	out.FeatureEngineering.Expansion.Features = slices.Clone(s.FeatureEngineering.Expansion.Features)
	out.Models = make([]Model, len(s.Models))
	for i, m := range s.Models {
		m.Hyperparameters = maps.Clone(m.Hyperparameters)
		out.Models[i] = m
	}
	out.Metrics = slices.Clone(s.Metrics)
	out.Decisions = slices.Clone(s.Decisions)
	return out
}

// Fingerprint is the SHA-256 of the canonical JSON encoding. Equal specs
// have equal fingerprints.
func (s Spec) Fingerprint() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Hyper returns a hyperparameter or def when absent.
func (m Model) Hyper(key string, def float64) float64 {
	if v, ok := m.Hyperparameters[key]; ok {
		return v
	}
	return def
}
