// Package profile computes per-column statistics for a decoded table.
package profile

import (
	"errors"
	"math"
	"sort"

	"fedlearn/internal/table"
)

// DType is the inferred kind of a column.
type DType string

const (
	DTypeNumeric     DType = "numeric"
	DTypeCategorical DType = "categorical"
	DTypeDatetime    DType = "datetime"
	DTypeText        DType = "text"
)

// Inference thresholds.
const (
	parseShare            = 0.8
	smallCardinality      = 10
	smallCardinalityRows  = 50
	textDistinctRatio     = 0.9
	textMinDistinct       = 50
	topValuesLimit        = 10
	classificationMaxDist = 10
)

var ErrNoTable = errors.New("profile requires a non-empty table")

// NumericSummary describes the distribution of a numeric column.
type NumericSummary struct {
	Mean            float64 `json:"mean"`
	Std             float64 `json:"std"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	Median          float64 `json:"median"`
	Q1              float64 `json:"q1"`
	Q3              float64 `json:"q3"`
	Skew            float64 `json:"skew"`
	Kurtosis        float64 `json:"kurtosis"`
	OutlierFraction float64 `json:"outlier_fraction"`
}

// ValueCount is a category and its frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Column is the profile of one feature column.
type Column struct {
	Name            string  `json:"name"`
	DType           DType   `json:"dtype"`
	MissingFraction float64 `json:"missing_fraction"`
	DistinctCount   int     `json:"distinct_count"`
	// AllMissing marks the sentinel entry for a column with no values.
	AllMissing bool `json:"all_missing"`
	// Constant is set when the column holds a single distinct value.
	Constant bool `json:"constant"`
	// NumericCategorical is set when a numeric column was reclassified
	// categorical because of its low cardinality.
	NumericCategorical bool            `json:"numeric_categorical"`
	Numeric            *NumericSummary `json:"numeric,omitempty"`
	TopValues          []ValueCount    `json:"top_values,omitempty"`
	TargetCorrelation  *float64        `json:"target_correlation,omitempty"`
}

// Target is the profile of the declared target column.
type Target struct {
	Name           string          `json:"name"`
	DType          DType           `json:"dtype"`
	IsNumeric      bool            `json:"is_numeric"`
	NonMissing     int             `json:"non_missing"`
	DistinctCount  int             `json:"distinct_count"`
	Classes        []ValueCount    `json:"classes,omitempty"`
	ImbalanceRatio float64         `json:"imbalance_ratio"`
	SuggestedTask  string          `json:"suggested_task"`
	Numeric        *NumericSummary `json:"numeric,omitempty"`
}

// DatasetProfile is computed fresh for every pipeline generation and is not
// modified afterwards.
type DatasetProfile struct {
	RowCount      int      `json:"row_count"`
	Columns       []Column `json:"columns"`
	Target        *Target  `json:"target,omitempty"`
	DuplicateRows int      `json:"duplicate_rows"`
	QualityScore  float64  `json:"quality_score"`
}

// Column looks up a feature column by name.
func (p *DatasetProfile) Column(name string) (Column, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasTarget reports whether the profile was built with target as its target.
func (p *DatasetProfile) HasTarget(target string) bool {
	return p.Target != nil && p.Target.Name == target
}

// Profile computes the dataset profile. target may be empty; when it names a
// column, that column is profiled as the target and excluded from features.
func Profile(t *table.Table, target string) (*DatasetProfile, error) {
	if t == nil || t.Len() == 0 {
		return nil, ErrNoTable
	}

	p := &DatasetProfile{RowCount: t.Len()}
	var targetNumeric []float64
	var targetPresent []bool
	if ti, ok := t.Index(target); ok {
		raw := rawColumn(t, ti)
		p.Target = profileTarget(target, raw)
		targetNumeric, targetPresent = numericValues(raw)
	}

	constant := 0
	missingCells := 0
	for ci, name := range t.Columns() {
		if p.Target != nil && name == target {
			continue
		}
		col := profileColumn(name, rawColumn(t, ci), p.RowCount)
		if p.Target != nil && p.Target.IsNumeric && col.Numeric != nil {
			col.TargetCorrelation = correlation(rawColumn(t, ci), targetNumeric, targetPresent)
		}
		if col.Constant {
			constant++
		}
		missingCells += int(math.Round(col.MissingFraction * float64(p.RowCount)))
		p.Columns = append(p.Columns, col)
	}

	p.DuplicateRows = duplicateRows(t)
	p.QualityScore = qualityScore(p, missingCells, constant)
	return p, nil
}

func rawColumn(t *table.Table, ci int) []string {
	out := make([]string, t.Len())
	for r := range out {
		out[r] = t.Value(r, ci)
	}
	return out
}

func profileColumn(name string, raw []string, rows int) Column {
	col := Column{Name: name}
	present := presentValues(raw)
	col.MissingFraction = 1 - float64(len(present))/float64(rows)
	if len(present) == 0 {
		col.AllMissing = true
		col.DType = DTypeCategorical
		col.MissingFraction = 1
		return col
	}

	counts := valueCounts(present)
	col.DistinctCount = len(counts)
	col.Constant = col.DistinctCount == 1
	col.DType = inferDType(present, col.DistinctCount)

	if col.DType == DTypeNumeric {
		nums, _ := numericValues(raw)
		col.Numeric = summarize(nums)
		col.DistinctCount = distinctFloats(nums)
		col.Constant = col.DistinctCount == 1
		if col.DistinctCount < smallCardinality && rows > smallCardinalityRows {
			col.DType = DTypeCategorical
			col.NumericCategorical = true
		}
	}
	if col.DType == DTypeCategorical {
		col.TopValues = topValues(counts, topValuesLimit)
	}
	return col
}

func profileTarget(name string, raw []string) *Target {
	t := &Target{Name: name}
	present := presentValues(raw)
	t.NonMissing = len(present)
	if len(present) == 0 {
		t.DType = DTypeCategorical
		return t
	}
	counts := valueCounts(present)
	t.DistinctCount = len(counts)
	t.DType = inferDType(present, t.DistinctCount)
	t.IsNumeric = t.DType == DTypeNumeric

	if t.IsNumeric {
		nums, _ := numericValues(raw)
		t.Numeric = summarize(nums)
		t.DistinctCount = distinctFloats(nums)
	}

	t.SuggestedTask = "classification"
	if t.IsNumeric && t.DistinctCount > classificationMaxDist {
		t.SuggestedTask = "regression"
	}

	if t.DistinctCount <= 1000 {
		t.Classes = sortedByValue(counts)
		minC, maxC := math.MaxInt, 0
		for _, c := range t.Classes {
			minC = min(minC, c.Count)
			maxC = max(maxC, c.Count)
		}
		if minC > 0 {
			t.ImbalanceRatio = float64(maxC) / float64(minC)
		}
	}
	return t
}

func presentValues(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if !table.IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

// numericValues returns the parseable values and, per row, whether the row
// contributed one.
func numericValues(raw []string) ([]float64, []bool) {
	out := make([]float64, 0, len(raw))
	ok := make([]bool, len(raw))
	for i, v := range raw {
		if f, parsed := table.ParseFloat(v); parsed {
			out = append(out, f)
			ok[i] = true
		}
	}
	return out, ok
}

func inferDType(present []string, distinct int) DType {
	n := float64(len(present))
	numeric, dated := 0, 0
	for _, v := range present {
		if _, ok := table.ParseFloat(v); ok {
			numeric++
			continue
		}
		if isDatetime(v) {
			dated++
		}
	}
	switch {
	case float64(numeric)/n >= parseShare:
		return DTypeNumeric
	case float64(dated)/n >= parseShare:
		return DTypeDatetime
	case distinct > textMinDistinct && float64(distinct)/n > textDistinctRatio:
		return DTypeText
	default:
		return DTypeCategorical
	}
}

func valueCounts(present []string) map[string]int {
	counts := make(map[string]int)
	for _, v := range present {
		counts[v]++
	}
	return counts
}

func distinctFloats(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}

func topValues(counts map[string]int, limit int) []ValueCount {
	out := sortedByValue(counts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortedByValue(counts map[string]int) []ValueCount {
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func duplicateRows(t *table.Table) int {
	seen := make(map[string]struct{}, t.Len())
	dups := 0
	buf := make([]byte, 0, 256)
	for r := 0; r < t.Len(); r++ {
		buf = buf[:0]
		for c := 0; c < t.Width(); c++ {
			buf = append(buf, t.Value(r, c)...)
			buf = append(buf, 0x1f)
		}
		key := string(buf)
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// qualityScore weighs completeness, uniqueness of rows and informative
// columns into a 0-100 score.
func qualityScore(p *DatasetProfile, missingCells, constant int) float64 {
	cols := len(p.Columns)
	if cols == 0 || p.RowCount == 0 {
		return 0
	}
	completeness := 1 - float64(missingCells)/float64(cols*p.RowCount)
	uniqueness := 1 - float64(p.DuplicateRows)/float64(p.RowCount)
	informative := 1 - float64(constant)/float64(cols)
	score := 100 * (0.6*completeness + 0.2*uniqueness + 0.2*informative)
	return math.Round(score*10) / 10
}
