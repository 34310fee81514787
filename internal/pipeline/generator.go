package pipeline

import (
	"fmt"

	"fedlearn/internal/profile"
)

// Generator composes the decision functions into a Spec. It holds no state
// besides its rules, so Generate is deterministic.
type Generator struct {
	rules Rules
}

type Option func(*Generator)

func WithRules(r Rules) Option {
	return func(g *Generator) {
		g.rules = r
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{rules: DefaultRules()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Rules returns the thresholds in use.
func (g *Generator) Rules() Rules { return g.rules }

// Generate builds the pipeline spec using DefaultRules.
func Generate(p *profile.DatasetProfile, target string, task TaskType) (Spec, error) {
	return NewGenerator().Generate(p, target, task)
}

// Generate builds the pipeline spec for target and task. It fails with
// ErrInvalidTask or ErrInsufficientData before anything is trained.
func (g *Generator) Generate(p *profile.DatasetProfile, target string, task TaskType) (Spec, error) {
	if err := ValidateTask(p, target, task); err != nil {
		return Spec{}, err
	}
	r := g.rules
	rows := p.Target.NonMissing

	spec := Spec{
		Version:  SpecVersion,
		Task:     task,
		Target:   target,
		RowCount: rows,
	}
	spec.Decisions = append(spec.Decisions, Decision{
		Stage:  stageTask,
		Choice: string(task),
		Reason: fmt.Sprintf("target %q (%s), %d labelled rows", target, p.Target.DType, rows),
	})

	validation, vd, err := r.DecideValidation(rows, task)
	if err != nil {
		return Spec{}, err
	}

	kept, dropped, log := r.SelectFeatures(p.Columns)
	spec.Decisions = append(spec.Decisions, log...)
	if len(kept) == 0 {
		return Spec{}, fmt.Errorf("%w: no usable feature columns", ErrInsufficientData)
	}
	spec.Preprocessing.Dropped = dropped

	var numeric []string
	for _, c := range kept {
		f := Feature{Name: c.Name, Kind: KindCategorical}
		if c.DType == profile.DTypeNumeric {
			f.Kind = KindNumeric
			numeric = append(numeric, c.Name)
		} else {
			f.Cardinality = c.DistinctCount
		}

		var d Decision
		f.Imputation, d = r.DecideImputation(c)
		spec.Decisions = append(spec.Decisions, d)
		if f.Kind == KindNumeric {
			f.Scaling, d = r.DecideScaling(c)
			spec.Decisions = append(spec.Decisions, d)
			var clip *Decision
			if f.ClipOutliers, clip = r.DecideClipping(c); clip != nil {
				spec.Decisions = append(spec.Decisions, *clip)
			}
			f.Encoding = EncodingNone
		} else {
			f.Scaling = ScalingNone
			f.Encoding, d = r.DecideEncoding(c)
			spec.Decisions = append(spec.Decisions, d)
		}
		spec.Preprocessing.Features = append(spec.Preprocessing.Features, f)
	}

	exp, d := r.DecideExpansion(numeric)
	spec.FeatureEngineering.Expansion = exp
	spec.Decisions = append(spec.Decisions, d)

	width := EncodedWidth(spec.Preprocessing.Features, exp)
	sel, d := r.DecideSelection(width, rows, task)
	spec.FeatureEngineering.Selection = sel
	spec.Decisions = append(spec.Decisions, d)

	models, log := r.DecideModels(rows, task, p.Target.ImbalanceRatio)
	spec.Models = models
	spec.Decisions = append(spec.Decisions, log...)

	spec.Validation = validation
	spec.Decisions = append(spec.Decisions, vd)

	metrics, d := DecideMetrics(task)
	spec.Metrics = metrics
	spec.Decisions = append(spec.Decisions, d)

	return spec, nil
}
