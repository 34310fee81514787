// Package orchestrator executes a pipeline spec against an in-memory table.
//
// Each partition is preprocessed once, then every model in the pipeline is
// fitted concurrently on the same read-only matrices. A model that errors or
// panics only fails itself; the run fails only when every model failed.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fedlearn/internal/ml"
	"fedlearn/internal/pipeline"
	"fedlearn/internal/table"
	"fedlearn/internal/training/metrics"
	"fedlearn/internal/training/models"
	"fedlearn/internal/training/preprocess"
)

const defaultWorkers = 4

// RunStore persists each state transition of a run.
type RunStore interface {
	Save(ctx context.Context, run *models.Run) error
}

type Orchestrator struct {
	registry *ml.Registry
	workers  int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Orchestrator)

// WithWorkers bounds how many models of one run fit at the same time.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithRegistry(r *ml.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.registry = r
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: ml.NewRegistry(),
		workers:  defaultWorkers,
		logger:   slog.Default(),
		tracer:   otel.Tracer("fedlearn/training"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Outcome is the product of training one spec.
type Outcome struct {
	Results []models.ModelResult
	Classes []string
}

// prepared is one preprocessed partition. Everything in it is read-only
// once built.
type prepared struct {
	transformer *preprocess.Transformer
	xTrain      [][]float64
	yTrain      []float64
	xTest       [][]float64
	yTest       []float64
}

// Execute drives run from PENDING to a terminal state, saving after each
// transition. The returned error reports transition or persistence
// failures; training failures are recorded on the run instead.
//
// Saves ignore cancellation of ctx: once RUNNING is stored, the terminal
// state must be stored too, even after the caller went away.
func (o *Orchestrator) Execute(ctx context.Context, run *models.Run, t *table.Table, store RunStore) error {
	ctx, span := o.tracer.Start(ctx, "training.execute", trace.WithAttributes(
		attribute.String("run_id", run.ID.String()),
		attribute.String("dataset_id", run.DatasetID.String()),
	))
	defer span.End()
	saveCtx := context.WithoutCancel(ctx)

	started := o.now()
	if err := run.Start(started); err != nil {
		return err
	}
	if err := store.Save(saveCtx, run); err != nil {
		return fmt.Errorf("saving running run: %w", err)
	}
	o.logger.InfoContext(ctx, "training run started",
		"run_id", run.ID.String(),
		"models", len(run.Spec.Models),
		"validation", string(run.Spec.Validation.Strategy),
	)

	outcome, err := o.Train(ctx, run.Spec, t)
	if err != nil {
		span.RecordError(err)
		if ferr := run.Fail(err.Error(), o.now()); ferr != nil {
			return ferr
		}
	} else if ferr := run.Finish(outcome.Results, outcome.Classes, o.now()); ferr != nil {
		return ferr
	}

	o.metrics.IncrementRunFinished(string(run.Status))
	o.metrics.ObserveRun(started)
	span.SetAttributes(attribute.String("status", string(run.Status)))
	if run.Status == models.RunStatusFailed {
		span.SetStatus(codes.Error, run.FailureReason)
		o.logger.WarnContext(ctx, "training run failed",
			"run_id", run.ID.String(),
			"reason", run.FailureReason,
		)
	} else {
		o.logger.InfoContext(ctx, "training run completed",
			"run_id", run.ID.String(),
			"best_model", run.BestModel,
			"failed_models", len(run.Results)-len(run.Succeeded()),
		)
	}

	if err := store.Save(saveCtx, run); err != nil {
		return fmt.Errorf("saving finished run: %w", err)
	}
	return nil
}

// Train preprocesses every partition and fits every model of spec. It only
// returns an error when nothing can be trained at all (unusable target,
// empty partitions, preprocessing failure).
func (o *Orchestrator) Train(ctx context.Context, spec pipeline.Spec, t *table.Table) (*Outcome, error) {
	l, err := buildLabels(spec, t)
	if err != nil {
		return nil, err
	}
	classification := spec.Task == pipeline.TaskClassification
	parts, err := partitions(spec.Validation, l.y, classification && spec.Validation.Stratify)
	if err != nil {
		return nil, err
	}

	preps := make([]prepared, len(parts))
	for i, p := range parts {
		trainRows, yTrain := l.subset(p.train)
		testRows, yTest := l.subset(p.test)
		tr, err := preprocess.Fit(spec, t, trainRows, yTrain)
		if err != nil {
			return nil, fmt.Errorf("preprocessing partition %d: %w", i+1, err)
		}
		preps[i] = prepared{
			transformer: tr,
			xTrain:      tr.Transform(t, trainRows),
			yTrain:      yTrain,
			xTest:       tr.Transform(t, testRows),
			yTest:       yTest,
		}
	}

	results := make([]models.ModelResult, len(spec.Models))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, m := range spec.Models {
		g.Go(func() error {
			results[i] = o.fitModel(ctx, spec, m, preps, len(l.classes))
			return nil
		})
	}
	_ = g.Wait()

	return &Outcome{Results: results, Classes: l.classes}, nil
}

// fitModel fits and evaluates one model over every partition. Errors and
// panics are captured into the result.
func (o *Orchestrator) fitModel(ctx context.Context, spec pipeline.Spec, m pipeline.Model, preps []prepared, classes int) (res models.ModelResult) {
	_, span := o.tracer.Start(ctx, "training.fit_model", trace.WithAttributes(
		attribute.String("model", m.Name),
		attribute.String("family", string(m.Family)),
	))
	start := o.now()
	res = models.ModelResult{Name: m.Name, Family: m.Family}

	defer func() {
		if r := recover(); r != nil {
			res = models.ModelResult{Name: m.Name, Family: m.Family, Error: fmt.Sprintf("panic: %v", r)}
		}
		elapsed := o.now().Sub(start)
		res.DurationMillis = elapsed.Milliseconds()
		o.metrics.ObserveModelFit(string(m.Family), elapsed)
		if res.Failed() {
			res.Metrics, res.ConfusionMatrix, res.Importance = nil, nil, nil
			o.metrics.IncrementModelFailure(string(m.Family))
			span.SetStatus(codes.Error, res.Error)
			o.logger.WarnContext(ctx, "model failed",
				"model", m.Name,
				"family", string(m.Family),
				"error", res.Error,
			)
		}
		span.End()
	}()

	// Workers stays zero: the model pool in Train is the only concurrency.
	cfg := ml.Config{Task: spec.Task, Classes: classes, Model: m}
	var (
		foldScores     []map[string]float64
		confusion      [][]int
		foldImportance []map[string]float64
		importancer    = true
	)
	for _, p := range preps {
		learner, err := o.registry.New(cfg)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		if err := learner.Fit(p.xTrain, p.yTrain); err != nil {
			res.Error = err.Error()
			return res
		}
		pred, err := learner.Predict(p.xTest)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		scores, cm := evaluate(spec, p.yTest, pred, classes)
		foldScores = append(foldScores, scores)
		confusion = addConfusion(confusion, cm)

		imp, ok := learner.(ml.Importancer)
		if !ok {
			importancer = false
			continue
		}
		foldImportance = append(foldImportance, NormalizeImportance(p.transformer.Attribute(imp.Importances())))
	}

	res.Metrics = averageScores(foldScores)
	res.ConfusionMatrix = confusion
	res.Importance = map[string]float64{}
	if importancer {
		res.Importance = averageImportance(foldImportance)
	}
	return res
}
