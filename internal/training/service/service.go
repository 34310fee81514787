// Package service exposes training runs to transports: it profiles a
// dataset, generates its pipeline spec, and drives runs through the
// orchestrator under the dispatch guard.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fedlearn/internal/explain"
	"fedlearn/internal/pipeline"
	"fedlearn/internal/profile"
	"fedlearn/internal/table"
	"fedlearn/internal/training/dispatch"
	"fedlearn/internal/training/events"
	"fedlearn/internal/training/metrics"
	"fedlearn/internal/training/models"
	"fedlearn/internal/training/orchestrator"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/platform/sentinel"
	"fedlearn/pkg/requestcontext"
)

type RunStore interface {
	Save(ctx context.Context, run *models.Run) error
	FindByID(ctx context.Context, runID id.RunID) (*models.Run, error)
	ListByDataset(ctx context.Context, datasetID id.DatasetID) ([]*models.Run, error)
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]*models.Run, error)
}

// Datasets is the dataset module as seen by training. Load returns the
// already decrypted table.
type Datasets interface {
	// AuthorizeProject fails with CodeForbidden unless the caller is
	// enrolled in projectID.
	AuthorizeProject(ctx context.Context, projectID id.ProjectID) error
	Owner(ctx context.Context, datasetID id.DatasetID) (id.ProjectID, id.UserID, error)
	Load(ctx context.Context, datasetID id.DatasetID) (*table.Table, error)
	CountByUser(ctx context.Context, projectID id.ProjectID) (map[id.UserID]int, error)
}

type Executor interface {
	Execute(ctx context.Context, run *models.Run, t *table.Table, store orchestrator.RunStore) error
}

// Service orchestrates pipeline generation and run execution.
type Service struct {
	runs      RunStore
	datasets  Datasets
	executor  Executor
	guard     dispatch.Guard
	generator *pipeline.Generator
	explainer explain.Explainer
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher sends lifecycle events for every saved transition.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithExplainer asks e for a narrative once a run is terminal.
func WithExplainer(e explain.Explainer) Option {
	return func(s *Service) {
		s.explainer = e
	}
}

func WithGenerator(g *pipeline.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.generator = g
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service.
func New(runs RunStore, datasets Datasets, executor Executor, guard dispatch.Guard, opts ...Option) *Service {
	s := &Service{
		runs:      runs,
		datasets:  datasets,
		executor:  executor,
		guard:     guard,
		generator: pipeline.NewGenerator(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("fedlearn/training"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRequest names the dataset column to predict and the kind of task.
type RunRequest struct {
	DatasetID id.DatasetID
	Target    string
	TaskType  string
}

// GeneratePipeline profiles the dataset and stores a PENDING run holding the
// generated spec. Nothing is trained.
func (s *Service) GeneratePipeline(ctx context.Context, req RunRequest) (*models.Run, error) {
	target := strings.TrimSpace(req.Target)
	if target == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "target_variable is required")
	}
	task, err := pipeline.ParseTaskType(req.TaskType)
	if err != nil {
		return nil, translate(err, "invalid task type")
	}

	projectID, userID, err := s.authorizeDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	t, err := s.datasets.Load(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	p, err := profile.Profile(t, target)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnprocessable, "dataset cannot be profiled")
	}
	spec, err := s.generator.Generate(p, target, task)
	if err != nil {
		return nil, translate(err, "failed to generate pipeline")
	}

	run, err := models.NewRun(id.NewRunID(), req.DatasetID, projectID, userID, spec, s.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create run")
	}
	run.Report = pipeline.Report(spec, p)
	if err := s.save(ctx, run); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save run")
	}

	s.logger.InfoContext(ctx, "pipeline generated",
		"run_id", run.ID.String(),
		"dataset_id", req.DatasetID.String(),
		"task", string(task),
		"models", len(spec.Models),
		"fingerprint", spec.Fingerprint(),
	)
	return run, nil
}

// Dispatch drives a PENDING run to a terminal state. A second dispatch of
// the same run while the first is in flight, or of a run that already left
// PENDING, is rejected with a conflict.
func (s *Service) Dispatch(ctx context.Context, runID id.RunID) (*models.Run, error) {
	ctx, span := s.tracer.Start(ctx, "training.dispatch", trace.WithAttributes(
		attribute.String("run_id", runID.String()),
	))
	defer span.End()

	release, err := s.guard.Acquire(ctx, runID)
	if err != nil {
		if errors.Is(err, dispatch.ErrInFlight) {
			s.metrics.IncrementDispatchConflict()
			return nil, dErrors.New(dErrors.CodeConflict, "run is already being dispatched")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to acquire run")
	}
	defer release()

	run, err := s.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := run.CanStart(); err != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "run has already been dispatched")
	}

	t, err := s.datasets.Load(ctx, run.DatasetID)
	if err != nil {
		return nil, err
	}
	if err := s.executor.Execute(ctx, run, t, publishingStore{s}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to execute run")
	}

	s.explain(ctx, run)
	return run, nil
}

// ConfigureAndRun generates the pipeline and dispatches it in one call.
func (s *Service) ConfigureAndRun(ctx context.Context, req RunRequest) (*models.Run, error) {
	ctx, span := s.tracer.Start(ctx, "training.configure_and_run", trace.WithAttributes(
		attribute.String("dataset_id", req.DatasetID.String()),
		attribute.String("task", req.TaskType),
	))
	defer span.End()

	run, err := s.GeneratePipeline(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.Dispatch(ctx, run.ID)
}

func (s *Service) GetRun(ctx context.Context, runID id.RunID) (*models.Run, error) {
	return s.loadRun(ctx, runID)
}

// ListRuns returns the dataset's runs, newest first.
func (s *Service) ListRuns(ctx context.Context, datasetID id.DatasetID) ([]*models.Run, error) {
	if _, _, err := s.authorizeDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list runs")
	}
	return runs, nil
}

// ProjectOverview lists every participant of a project with their dataset
// and run counts and the state of their latest run. Each participant trains
// alone; nothing here combines models across users. Only members of the
// project may read it.
func (s *Service) ProjectOverview(ctx context.Context, projectID id.ProjectID) ([]models.Participant, error) {
	if requestcontext.UserID(ctx) == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := s.datasets.AuthorizeProject(ctx, projectID); err != nil {
		return nil, err
	}
	datasets, err := s.datasets.CountByUser(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count datasets")
	}
	runs, err := s.runs.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list runs")
	}

	byUser := make(map[id.UserID]*models.Participant, len(datasets))
	participant := func(u id.UserID) *models.Participant {
		p, ok := byUser[u]
		if !ok {
			p = &models.Participant{UserID: u}
			byUser[u] = p
		}
		return p
	}
	for u, n := range datasets {
		participant(u).Datasets = n
	}
	// runs arrive newest first, so the first run seen per user is the latest
	for _, r := range runs {
		p := participant(r.UserID)
		if p.Runs == 0 {
			p.LatestStatus = r.Status
			p.LatestRunAt = r.CreatedAt
			p.BestModel = r.BestModel
		}
		p.Runs++
	}

	out := make([]models.Participant, 0, len(byUser))
	for _, p := range byUser {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// authorizeDataset resolves the dataset owner and checks it is the caller.
func (s *Service) authorizeDataset(ctx context.Context, datasetID id.DatasetID) (id.ProjectID, id.UserID, error) {
	caller := requestcontext.UserID(ctx)
	if caller == 0 {
		return 0, 0, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	projectID, owner, err := s.datasets.Owner(ctx, datasetID)
	if err != nil {
		return 0, 0, err
	}
	if owner != caller {
		return 0, 0, dErrors.New(dErrors.CodeForbidden, "dataset belongs to another user")
	}
	return projectID, owner, nil
}

func (s *Service) loadRun(ctx context.Context, runID id.RunID) (*models.Run, error) {
	caller := requestcontext.UserID(ctx)
	if caller == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load run")
	}
	if run.UserID != caller {
		return nil, dErrors.New(dErrors.CodeForbidden, "run belongs to another user")
	}
	return run, nil
}

// explain attaches a narrative to a terminal run. Failures are logged and
// leave the run untouched.
func (s *Service) explain(ctx context.Context, run *models.Run) {
	if s.explainer == nil || !run.Status.IsTerminal() {
		return
	}
	text, err := s.explainer.Explain(ctx, explain.Summarize(run))
	if err != nil {
		s.metrics.IncrementExplainFailure()
		s.logger.WarnContext(ctx, "run explanation failed",
			"run_id", run.ID.String(),
			"error", err,
		)
		return
	}
	run.Explanation = text
	if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		s.logger.WarnContext(ctx, "failed to save run explanation",
			"run_id", run.ID.String(),
			"error", err,
		)
	}
}

// save persists run and announces its current status.
func (s *Service) save(ctx context.Context, run *models.Run) error {
	if err := s.runs.Save(ctx, run); err != nil {
		return err
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, events.FromRun(run, s.now())); err != nil {
		s.logger.WarnContext(ctx, "failed to publish run event",
			"run_id", run.ID.String(),
			"status", string(run.Status),
			"error", err,
		)
	}
	return nil
}

// publishingStore hands the orchestrator a store that also emits events.
type publishingStore struct {
	s *Service
}

func (p publishingStore) Save(ctx context.Context, run *models.Run) error {
	return p.s.save(context.WithoutCancel(ctx), run)
}

// translate maps generator errors to coded errors.
func translate(err error, msg string) error {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTask):
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	case errors.Is(err, pipeline.ErrInsufficientData):
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, err.Error())
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
