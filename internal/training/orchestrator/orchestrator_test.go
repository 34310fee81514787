package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fedlearn/internal/ml"
	"fedlearn/internal/pipeline"
	"fedlearn/internal/profile"
	"fedlearn/internal/table"
	"fedlearn/internal/training/models"
	"fedlearn/internal/training/orchestrator"
	id "fedlearn/pkg/domain"
)

const importanceEpsilon = 0.01

type recordingStore struct {
	mu       sync.Mutex
	statuses []models.RunStatus
}

func (r *recordingStore) Save(_ context.Context, run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, run.Status)
	return nil
}

// contextStore fails like a database driver once its context is done.
type contextStore struct {
	mu     sync.Mutex
	stored models.RunStatus
}

func (c *contextStore) Save(ctx context.Context, run *models.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = run.Status
	return nil
}

// cancellingLearner cancels the caller's context while it trains.
type cancellingLearner struct {
	meanLearner
	cancel context.CancelFunc
}

func (c *cancellingLearner) Fit(X [][]float64, y []float64) error {
	c.cancel()
	return c.meanLearner.Fit(X, y)
}

type meanLearner struct{ mean float64 }

func (m *meanLearner) Fit(_ [][]float64, y []float64) error {
	for _, v := range y {
		m.mean += v
	}
	m.mean /= float64(len(y))
	return nil
}

func (m *meanLearner) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = m.mean
	}
	return out, nil
}

type panicLearner struct{}

func (panicLearner) Fit([][]float64, []float64) error       { panic("numerical blowup") }
func (panicLearner) Predict([][]float64) ([]float64, error) { return nil, nil }

type errLearner struct{}

func (errLearner) Fit([][]float64, []float64) error       { return errors.New("diverged") }
func (errLearner) Predict([][]float64) ([]float64, error) { return nil, nil }

type OrchestratorSuite struct {
	suite.Suite
	ctx      context.Context
	registry *ml.Registry
	orch     *orchestrator.Orchestrator
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = ml.NewRegistry()
	s.registry.Register("mean", func(ml.Config) (ml.Learner, error) { return &meanLearner{}, nil })
	s.registry.Register("panics", func(ml.Config) (ml.Learner, error) { return panicLearner{}, nil })
	s.registry.Register("errors", func(ml.Config) (ml.Learner, error) { return errLearner{}, nil })
	s.orch = orchestrator.New(orchestrator.WithRegistry(s.registry), orchestrator.WithWorkers(2))
}

// regressionTable has y = 3x + 5 plus a nuisance category.
func (s *OrchestratorSuite) regressionTable(rows int) *table.Table {
	data := make([][]string, rows)
	for i := range data {
		x := float64(i) / 2
		data[i] = []string{fmt.Sprint(x), []string{"north", "south", "east"}[i%3], fmt.Sprint(3*x + 5)}
	}
	t, err := table.New([]string{"x", "region", "y"}, data)
	s.Require().NoError(err)
	return t
}

// classificationTable separates labels on x.
func (s *OrchestratorSuite) classificationTable(rows int) *table.Table {
	data := make([][]string, rows)
	for i := range data {
		label := "no"
		if i >= rows/2 {
			label = "yes"
		}
		data[i] = []string{fmt.Sprint(i), []string{"red", "green", "blue"}[i%3], label}
	}
	t, err := table.New([]string{"x", "color", "label"}, data)
	s.Require().NoError(err)
	return t
}

func (s *OrchestratorSuite) generate(t *table.Table, target string, task pipeline.TaskType) pipeline.Spec {
	p, err := profile.Profile(t, target)
	s.Require().NoError(err)
	spec, err := pipeline.Generate(p, target, task)
	s.Require().NoError(err)
	return spec
}

func (s *OrchestratorSuite) assertNormalized(res models.ModelResult) {
	if len(res.Importance) == 0 {
		return
	}
	var sum float64
	for _, v := range res.Importance {
		s.GreaterOrEqual(v, 0.0)
		sum += v
	}
	s.InDelta(100, sum, importanceEpsilon, "importance of %s", res.Name)
}

func (s *OrchestratorSuite) TestClassificationKFold() {
	t := s.classificationTable(60)
	spec := s.generate(t, "label", pipeline.TaskClassification)
	s.Require().Equal(pipeline.ValidationKFold, spec.Validation.Strategy)

	out, err := s.orch.Train(s.ctx, spec, t)
	s.Require().NoError(err)
	s.Equal([]string{"no", "yes"}, out.Classes)
	s.Require().Len(out.Results, len(spec.Models))

	total := 0
	for _, res := range out.Results {
		s.Empty(res.Error, res.Name)
		s.Contains(res.Metrics, "accuracy")
		s.Contains(res.Metrics, "f1")
		s.assertNormalized(res)
		s.Contains(res.Importance, "x")
		s.Contains(res.Importance, "color")
		total = 0
		for _, row := range res.ConfusionMatrix {
			for _, v := range row {
				total += v
			}
		}
		s.Equal(60, total, "k-fold confusion matrices sum over every row once")
	}
	s.Equal("decision_tree", out.Results[1].Name)
	s.GreaterOrEqual(out.Results[1].Metrics["accuracy"], 0.9)
}

func (s *OrchestratorSuite) TestRegressionHoldout() {
	t := s.regressionTable(400)
	spec := s.generate(t, "y", pipeline.TaskRegression)
	s.Require().Equal(pipeline.ValidationHoldout, spec.Validation.Strategy)

	out, err := s.orch.Train(s.ctx, spec, t)
	s.Require().NoError(err)
	s.Empty(out.Classes)
	for _, res := range out.Results {
		s.Empty(res.Error, res.Name)
		s.ElementsMatch([]string{"rmse", "mae", "r2"}, keys(res.Metrics))
		s.Nil(res.ConfusionMatrix)
		s.assertNormalized(res)
	}
	s.Equal("linear_regression", out.Results[0].Name)
	s.Greater(out.Results[0].Metrics["r2"], 0.99)
}

func (s *OrchestratorSuite) TestDeterministic() {
	t := s.classificationTable(60)
	spec := s.generate(t, "label", pipeline.TaskClassification)

	a, err := s.orch.Train(s.ctx, spec, t)
	s.Require().NoError(err)
	b, err := s.orch.Train(s.ctx, spec, t)
	s.Require().NoError(err)
	for i := range a.Results {
		a.Results[i].DurationMillis, b.Results[i].DurationMillis = 0, 0
	}
	s.Equal(a.Results, b.Results)
}

func (s *OrchestratorSuite) TestPartialFailureIsolation() {
	t := s.regressionTable(120)
	spec := s.generate(t, "y", pipeline.TaskRegression)
	spec.Models = append(spec.Models,
		pipeline.Model{Name: "exploding", Family: "panics"},
		pipeline.Model{Name: "diverging", Family: "errors"},
		pipeline.Model{Name: "baseline", Family: "mean"},
		pipeline.Model{Name: "unknown", Family: "nope"},
	)
	run, err := models.NewRun(id.NewRunID(), id.NewDatasetID(), 1, 1, spec, time.Now())
	s.Require().NoError(err)
	store := &recordingStore{}

	s.Require().NoError(s.orch.Execute(s.ctx, run, t, store))

	s.Equal([]models.RunStatus{models.RunStatusRunning, models.RunStatusCompleted}, store.statuses)
	s.Equal(models.RunStatusCompleted, run.Status)
	byName := map[string]models.ModelResult{}
	for _, res := range run.Results {
		byName[res.Name] = res
	}
	s.Contains(byName["exploding"].Error, "numerical blowup")
	s.Equal("diverged", byName["diverging"].Error)
	s.Contains(byName["unknown"].Error, "unknown model family")
	s.Nil(byName["exploding"].Metrics)

	s.Empty(byName["baseline"].Error)
	s.Empty(byName["baseline"].Importance, "families without importances report an empty map")
	s.NotNil(byName["baseline"].Importance)

	s.Empty(byName["linear_regression"].Error)
	s.NotEmpty(byName["linear_regression"].Metrics)
	s.assertNormalized(byName["random_forest"])
	s.Equal("linear_regression", run.BestModel)
}

func (s *OrchestratorSuite) TestAllModelsFailed() {
	t := s.regressionTable(120)
	spec := s.generate(t, "y", pipeline.TaskRegression)
	spec.Models = []pipeline.Model{
		{Name: "exploding", Family: "panics"},
		{Name: "diverging", Family: "errors"},
	}
	run, err := models.NewRun(id.NewRunID(), id.NewDatasetID(), 1, 1, spec, time.Now())
	s.Require().NoError(err)
	store := &recordingStore{}

	s.Require().NoError(s.orch.Execute(s.ctx, run, t, store))
	s.Equal(models.RunStatusFailed, run.Status)
	s.Contains(run.FailureReason, "all models failed")
	s.Contains(run.FailureReason, "diverging: diverged")
	s.Equal(models.RunStatusFailed, store.statuses[len(store.statuses)-1])
}

func (s *OrchestratorSuite) TestUnusableTableFailsRun() {
	t := s.regressionTable(120)
	spec := s.generate(t, "y", pipeline.TaskRegression)
	spec.Target = "missing"
	run, err := models.NewRun(id.NewRunID(), id.NewDatasetID(), 1, 1, spec, time.Now())
	s.Require().NoError(err)

	s.Require().NoError(s.orch.Execute(s.ctx, run, t, &recordingStore{}))
	s.Equal(models.RunStatusFailed, run.Status)
	s.Contains(run.FailureReason, "missing")
}

func (s *OrchestratorSuite) TestCancelledCallerStillStoresTerminalState() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.registry.Register("cancels", func(ml.Config) (ml.Learner, error) {
		return &cancellingLearner{cancel: cancel}, nil
	})
	t := s.regressionTable(120)
	spec := s.generate(t, "y", pipeline.TaskRegression)
	spec.Models = append(spec.Models, pipeline.Model{Name: "baseline", Family: "cancels"})
	run, err := models.NewRun(id.NewRunID(), id.NewDatasetID(), 1, 1, spec, time.Now())
	s.Require().NoError(err)
	store := &contextStore{}

	s.Require().NoError(s.orch.Execute(ctx, run, t, store))
	s.Require().Error(ctx.Err(), "the caller went away during training")
	s.Equal(models.RunStatusCompleted, run.Status)
	s.Equal(models.RunStatusCompleted, store.stored)
}

func (s *OrchestratorSuite) TestExecuteRejectsStartedRun() {
	t := s.regressionTable(120)
	spec := s.generate(t, "y", pipeline.TaskRegression)
	run, err := models.NewRun(id.NewRunID(), id.NewDatasetID(), 1, 1, spec, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(run.Start(time.Now()))

	s.Error(s.orch.Execute(s.ctx, run, t, &recordingStore{}))
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
