// Package preprocess fits the feature transforms a pipeline spec describes
// and applies them to table rows.
//
// Fit only ever reads the training rows it is given. Every statistic
// (imputation values, clip fences, scaler parameters, vocabularies,
// selection scores) comes from those rows, so evaluation rows cannot leak
// into the fitted transform.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fedlearn/internal/pipeline"
	"fedlearn/internal/table"
)

var (
	ErrNoTrainingRows = errors.New("no training rows")
	ErrNoFeatures     = errors.New("spec has no usable features")
)

// Transformer is a fitted, read-only feature transform.
type Transformer struct {
	numeric     []*numericTransform
	categorical []*categoricalTransform
	terms       [][2]int
	selected    []int
	names       []string
	sources     [][]string
}

type numericTransform struct {
	name   string
	col    int
	fill   float64
	clip   bool
	lo, hi float64
	center float64
	scale  float64
}

type categoricalTransform struct {
	name     string
	col      int
	encoding pipeline.Encoding
	fill     string
	vocab    []string
	index    map[string]int
	freq     map[string]float64
}

// Fit learns the transform described by spec from the train rows of t.
// y holds the training labels aligned with train and is only used for
// feature selection.
func Fit(spec pipeline.Spec, t *table.Table, train []int, y []float64) (*Transformer, error) {
	if len(train) == 0 {
		return nil, ErrNoTrainingRows
	}
	if len(y) != len(train) {
		return nil, fmt.Errorf("labels: got %d, want %d", len(y), len(train))
	}
	if len(spec.Preprocessing.Features) == 0 {
		return nil, ErrNoFeatures
	}

	tr := &Transformer{}
	for _, f := range spec.Preprocessing.Features {
		col, ok := t.Index(f.Name)
		if !ok {
			return nil, fmt.Errorf("feature %q not in table", f.Name)
		}
		switch f.Kind {
		case pipeline.KindNumeric:
			tr.numeric = append(tr.numeric, fitNumeric(f, t, col, train))
		case pipeline.KindCategorical:
			tr.categorical = append(tr.categorical, fitCategorical(f, t, col, train))
		default:
			return nil, fmt.Errorf("feature %q has unknown kind %q", f.Name, f.Kind)
		}
	}
	tr.buildLayout(spec.FeatureEngineering.Expansion)

	if sel := spec.FeatureEngineering.Selection; sel.Enabled && sel.K > 0 && sel.K < len(tr.names) {
		full := tr.encode(t, train)
		tr.selected = selectColumns(full, y, sel)
	}
	return tr, nil
}

func fitNumeric(f pipeline.Feature, t *table.Table, col int, train []int) *numericTransform {
	vals := make([]float64, 0, len(train))
	for _, r := range train {
		if v, ok := t.Float(r, col); ok {
			vals = append(vals, v)
		}
	}
	sort.Float64s(vals)

	nt := &numericTransform{name: f.Name, col: col, scale: 1}
	if len(vals) == 0 {
		return nt
	}
	if f.Imputation == pipeline.ImputeMedian {
		nt.fill = stat.Quantile(0.5, stat.Empirical, vals, nil)
	} else {
		nt.fill = stat.Mean(vals, nil)
	}

	q1 := stat.Quantile(0.25, stat.Empirical, vals, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, vals, nil)
	if f.ClipOutliers && q3 > q1 {
		nt.clip = true
		nt.lo, nt.hi = q1-1.5*(q3-q1), q3+1.5*(q3-q1)
	}

	// Scaler statistics are computed over the imputed, clipped train column.
	filled := make([]float64, len(train))
	for i, r := range train {
		v, ok := t.Float(r, col)
		if !ok {
			v = nt.fill
		}
		filled[i] = nt.clipValue(v)
	}
	switch f.Scaling {
	case pipeline.ScalingStandard:
		mean, std := stat.MeanStdDev(filled, nil)
		nt.center, nt.scale = mean, nonZero(std)
	case pipeline.ScalingRobust:
		sort.Float64s(filled)
		med := stat.Quantile(0.5, stat.Empirical, filled, nil)
		iqr := stat.Quantile(0.75, stat.Empirical, filled, nil) - stat.Quantile(0.25, stat.Empirical, filled, nil)
		nt.center, nt.scale = med, nonZero(iqr)
	}
	return nt
}

func nonZero(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 1
	}
	return v
}

func (n *numericTransform) clipValue(v float64) float64 {
	if !n.clip {
		return v
	}
	return math.Min(math.Max(v, n.lo), n.hi)
}

func (n *numericTransform) apply(t *table.Table, row int) float64 {
	v, ok := t.Float(row, n.col)
	if !ok {
		v = n.fill
	}
	return (n.clipValue(v) - n.center) / n.scale
}

func fitCategorical(f pipeline.Feature, t *table.Table, col int, train []int) *categoricalTransform {
	counts := make(map[string]int)
	for _, r := range train {
		v := t.Value(r, col)
		if table.IsMissing(v) {
			continue
		}
		counts[v]++
	}
	ct := &categoricalTransform{name: f.Name, col: col, encoding: f.Encoding}
	ct.vocab = make([]string, 0, len(counts))
	for v := range counts {
		ct.vocab = append(ct.vocab, v)
	}
	sort.Strings(ct.vocab)

	// Most frequent, ties broken by vocabulary order.
	best := -1
	for _, v := range ct.vocab {
		if counts[v] > best {
			ct.fill, best = v, counts[v]
		}
	}
	if len(ct.vocab) > 0 {
		counts[ct.fill] += len(train) - sum(counts)
	}

	ct.index = make(map[string]int, len(ct.vocab))
	for i, v := range ct.vocab {
		ct.index[v] = i
	}
	if f.Encoding == pipeline.EncodingFrequency {
		ct.freq = make(map[string]float64, len(counts))
		for v, c := range counts {
			ct.freq[v] = float64(c) / float64(len(train))
		}
	}
	return ct
}

func sum(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

func (c *categoricalTransform) width() int {
	if c.encoding == pipeline.EncodingOneHot {
		return len(c.vocab)
	}
	return 1
}

func (c *categoricalTransform) value(t *table.Table, row int) string {
	v := t.Value(row, c.col)
	if table.IsMissing(v) {
		return c.fill
	}
	return v
}

// apply writes the encoded columns into out. Values unseen during Fit
// encode as all zeros (one-hot), 0 (ordinal) or 0 (frequency).
func (c *categoricalTransform) apply(t *table.Table, row int, out []float64) {
	v := c.value(t, row)
	switch c.encoding {
	case pipeline.EncodingOneHot:
		for i := range out[:len(c.vocab)] {
			out[i] = 0
		}
		if i, ok := c.index[v]; ok {
			out[i] = 1
		}
	case pipeline.EncodingFrequency:
		out[0] = c.freq[v]
	default:
		if i, ok := c.index[v]; ok {
			out[0] = float64(i + 1)
		} else {
			out[0] = 0
		}
	}
}

func (tr *Transformer) buildLayout(exp pipeline.Expansion) {
	for _, n := range tr.numeric {
		tr.names = append(tr.names, n.name)
		tr.sources = append(tr.sources, []string{n.name})
	}
	for _, c := range tr.categorical {
		if c.encoding == pipeline.EncodingOneHot {
			for _, v := range c.vocab {
				tr.names = append(tr.names, c.name+"="+v)
				tr.sources = append(tr.sources, []string{c.name})
			}
			continue
		}
		tr.names = append(tr.names, c.name)
		tr.sources = append(tr.sources, []string{c.name})
	}
	if !exp.Enabled {
		return
	}

	pos := make(map[string]int, len(tr.numeric))
	for i, n := range tr.numeric {
		pos[n.name] = i
	}
	var idx []int
	for _, name := range exp.Features {
		if i, ok := pos[name]; ok {
			idx = append(idx, i)
		}
	}
	for a := 0; a < len(idx); a++ {
		for b := a; b < len(idx); b++ {
			i, j := idx[a], idx[b]
			tr.terms = append(tr.terms, [2]int{i, j})
			left, right := tr.numeric[i].name, tr.numeric[j].name
			if i == j {
				tr.names = append(tr.names, left+"^2")
				tr.sources = append(tr.sources, []string{left})
			} else {
				tr.names = append(tr.names, left+"*"+right)
				tr.sources = append(tr.sources, []string{left, right})
			}
		}
	}
}

// encode produces the full pre-selection matrix.
func (tr *Transformer) encode(t *table.Table, rows []int) [][]float64 {
	width := len(tr.names)
	out := make([][]float64, len(rows))
	for ri, r := range rows {
		row := make([]float64, width)
		k := 0
		for _, n := range tr.numeric {
			row[k] = n.apply(t, r)
			k++
		}
		for _, c := range tr.categorical {
			w := c.width()
			c.apply(t, r, row[k:k+w])
			k += w
		}
		for _, term := range tr.terms {
			row[k] = row[term[0]] * row[term[1]]
			k++
		}
		out[ri] = row
	}
	return out
}

// Transform applies the fitted transform to rows of t. The returned matrix
// is freshly allocated and safe to share read-only.
func (tr *Transformer) Transform(t *table.Table, rows []int) [][]float64 {
	full := tr.encode(t, rows)
	if tr.selected == nil {
		return full
	}
	out := make([][]float64, len(full))
	for i, row := range full {
		sel := make([]float64, len(tr.selected))
		for j, c := range tr.selected {
			sel[j] = row[c]
		}
		out[i] = sel
	}
	return out
}

// FeatureNames names the output columns in order.
func (tr *Transformer) FeatureNames() []string {
	if tr.selected == nil {
		return append([]string(nil), tr.names...)
	}
	out := make([]string, len(tr.selected))
	for i, c := range tr.selected {
		out[i] = tr.names[c]
	}
	return out
}

// Width is the number of output columns.
func (tr *Transformer) Width() int {
	if tr.selected == nil {
		return len(tr.names)
	}
	return len(tr.selected)
}

// Attribute folds per-output-column scores back onto input feature names.
// Interaction terms split their score evenly between both sources.
func (tr *Transformer) Attribute(raw []float64) map[string]float64 {
	out := make(map[string]float64)
	for _, n := range tr.numeric {
		out[n.name] = 0
	}
	for _, c := range tr.categorical {
		out[c.name] = 0
	}
	for i, v := range raw {
		col := i
		if tr.selected != nil {
			if i >= len(tr.selected) {
				break
			}
			col = tr.selected[i]
		}
		if col >= len(tr.sources) {
			break
		}
		srcs := tr.sources[col]
		share := math.Abs(v) / float64(len(srcs))
		for _, s := range srcs {
			out[s] += share
		}
	}
	return out
}
