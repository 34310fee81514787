package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fedlearn/internal/explain"
	"fedlearn/internal/table"
	"fedlearn/internal/training/dispatch"
	"fedlearn/internal/training/events"
	"fedlearn/internal/training/models"
	"fedlearn/internal/training/orchestrator"
	"fedlearn/internal/training/service/mocks"
	runstore "fedlearn/internal/training/store/run"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/platform/sentinel"
	"fedlearn/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

const (
	owner    id.UserID    = 7
	stranger id.UserID    = 8
	project  id.ProjectID = 3
)

type failingExplainer struct{}

func (failingExplainer) Explain(context.Context, explain.Summary) (string, error) {
	return "", errors.New("quota exceeded")
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	datasets  *mocks.MockDatasets
	runs      *runstore.InMemoryStore
	publisher *events.MemoryPublisher
	datasetID id.DatasetID
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithUserID(context.Background(), owner)
	s.ctrl = gomock.NewController(s.T())
	s.datasets = mocks.NewMockDatasets(s.ctrl)
	s.runs = runstore.NewInMemoryStore()
	s.publisher = events.NewMemoryPublisher()
	s.datasetID = id.NewDatasetID()
	s.service = s.newService(orchestrator.New(orchestrator.WithWorkers(2)), WithExplainer(explain.Fallback{}))
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) newService(exec Executor, opts ...Option) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{
		WithLogger(logger),
		WithPublisher(s.publisher),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}
	return New(s.runs, s.datasets, exec, dispatch.NewMemoryGuard(), append(base, opts...)...)
}

// classificationTable separates labels on x.
func (s *ServiceSuite) classificationTable(rows int) *table.Table {
	data := make([][]string, rows)
	for i := range data {
		label := "low"
		if i >= rows/2 {
			label = "high"
		}
		data[i] = []string{fmt.Sprint(i), []string{"a", "b", "c"}[i%3], label}
	}
	t, err := table.New([]string{"x", "group", "risk"}, data)
	s.Require().NoError(err)
	return t
}

func (s *ServiceSuite) expectDataset(t *table.Table) {
	s.datasets.EXPECT().Owner(gomock.Any(), s.datasetID).Return(project, owner, nil).AnyTimes()
	s.datasets.EXPECT().Load(gomock.Any(), s.datasetID).Return(t, nil).AnyTimes()
}

func (s *ServiceSuite) request() RunRequest {
	return RunRequest{DatasetID: s.datasetID, Target: "risk", TaskType: "classification"}
}

func (s *ServiceSuite) eventTypes() []events.Type {
	var out []events.Type
	for _, e := range s.publisher.Events() {
		out = append(out, e.Type)
	}
	return out
}

func (s *ServiceSuite) TestConfigureAndRun() {
	s.expectDataset(s.classificationTable(60))

	run, err := s.service.ConfigureAndRun(s.ctx, s.request())
	s.Require().NoError(err)
	s.Equal(models.RunStatusCompleted, run.Status)
	s.Equal(project, run.ProjectID)
	s.Equal(owner, run.UserID)
	s.NotEmpty(run.BestModel)
	s.NotEmpty(run.Report)
	s.Contains(run.Explanation, "risk")

	stored, err := s.runs.FindByID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(run.Explanation, stored.Explanation)
	s.Equal([]events.Type{events.RunCreated, events.RunStarted, events.RunCompleted}, s.eventTypes())
}

func (s *ServiceSuite) TestGeneratePipeline() {
	s.Run("stores a pending run without training", func() {
		s.SetupTest()
		s.expectDataset(s.classificationTable(60))

		run, err := s.service.GeneratePipeline(s.ctx, s.request())
		s.Require().NoError(err)
		s.Equal(models.RunStatusPending, run.Status)
		s.Empty(run.Results)
		s.Len(run.Spec.Models, 3)
		s.Equal([]events.Type{events.RunCreated}, s.eventTypes())
	})

	s.Run("unknown task type is a validation error", func() {
		s.SetupTest()
		req := s.request()
		req.TaskType = "clustering"
		_, err := s.service.GeneratePipeline(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("absent target is a validation error", func() {
		s.SetupTest()
		s.expectDataset(s.classificationTable(60))
		req := s.request()
		req.Target = "missing"
		_, err := s.service.GeneratePipeline(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("too few rows is unprocessable", func() {
		s.SetupTest()
		s.expectDataset(s.classificationTable(6))
		_, err := s.service.GeneratePipeline(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeUnprocessable))
		s.Empty(s.publisher.Events())
	})

	s.Run("another user's dataset is forbidden", func() {
		s.SetupTest()
		s.expectDataset(s.classificationTable(60))
		ctx := requestcontext.WithUserID(context.Background(), stranger)
		_, err := s.service.GeneratePipeline(ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("anonymous callers are rejected", func() {
		s.SetupTest()
		_, err := s.service.GeneratePipeline(context.Background(), s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestDispatch() {
	s.Run("a finished run cannot be dispatched again", func() {
		s.SetupTest()
		s.expectDataset(s.classificationTable(60))
		run, err := s.service.ConfigureAndRun(s.ctx, s.request())
		s.Require().NoError(err)

		_, err = s.service.Dispatch(s.ctx, run.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown run is not found", func() {
		s.SetupTest()
		_, err := s.service.Dispatch(s.ctx, id.NewRunID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("explanation failure leaves the run completed", func() {
		s.SetupTest()
		s.expectDataset(s.classificationTable(60))
		svc := s.newService(orchestrator.New(), WithExplainer(failingExplainer{}))

		run, err := svc.ConfigureAndRun(s.ctx, s.request())
		s.Require().NoError(err)
		s.Equal(models.RunStatusCompleted, run.Status)
		s.Empty(run.Explanation)
	})

	s.Run("persistence failure during execution is internal", func() {
		s.SetupTest()
		s.expectDataset(s.classificationTable(60))
		exec := mocks.NewMockExecutor(s.ctrl)
		exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(sentinel.ErrUnavailable)
		svc := s.newService(exec)

		_, err := svc.ConfigureAndRun(s.ctx, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

// TestConcurrentDuplicateDispatch holds the first dispatch inside Execute
// while a second dispatch of the same run arrives.
func (s *ServiceSuite) TestConcurrentDuplicateDispatch() {
	s.expectDataset(s.classificationTable(60))
	entered := make(chan struct{})
	proceed := make(chan struct{})
	exec := mocks.NewMockExecutor(s.ctrl)
	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, run *models.Run, _ *table.Table, store orchestrator.RunStore) error {
			now := time.Now()
			if err := run.Start(now); err != nil {
				return err
			}
			if err := store.Save(ctx, run); err != nil {
				return err
			}
			close(entered)
			<-proceed
			if err := run.Fail("stopped by test", now); err != nil {
				return err
			}
			return store.Save(ctx, run)
		}).Times(1)
	svc := s.newService(exec)

	run, err := svc.GeneratePipeline(s.ctx, s.request())
	s.Require().NoError(err)

	type result struct {
		run *models.Run
		err error
	}
	first := make(chan result, 1)
	go func() {
		r, err := svc.Dispatch(s.ctx, run.ID)
		first <- result{r, err}
	}()

	<-entered
	_, err = svc.Dispatch(s.ctx, run.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	close(proceed)
	got := <-first
	s.Require().NoError(got.err)
	s.Equal(models.RunStatusFailed, got.run.Status)
}

func (s *ServiceSuite) TestGetRunAndList() {
	s.expectDataset(s.classificationTable(60))
	run, err := s.service.GeneratePipeline(s.ctx, s.request())
	s.Require().NoError(err)

	got, err := s.service.GetRun(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)

	_, err = s.service.GetRun(requestcontext.WithUserID(context.Background(), stranger), run.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	list, err := s.service.ListRuns(s.ctx, s.datasetID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *ServiceSuite) TestProjectOverview() {
	s.expectDataset(s.classificationTable(60))
	run, err := s.service.ConfigureAndRun(s.ctx, s.request())
	s.Require().NoError(err)

	s.datasets.EXPECT().AuthorizeProject(gomock.Any(), project).Return(nil)
	s.datasets.EXPECT().CountByUser(gomock.Any(), project).
		Return(map[id.UserID]int{owner: 1, stranger: 2}, nil)

	overview, err := s.service.ProjectOverview(s.ctx, project)
	s.Require().NoError(err)
	s.Require().Len(overview, 2)

	s.Equal(owner, overview[0].UserID)
	s.Equal(1, overview[0].Datasets)
	s.Equal(1, overview[0].Runs)
	s.Equal(models.RunStatusCompleted, overview[0].LatestStatus)
	s.Equal(run.BestModel, overview[0].BestModel)

	s.Equal(stranger, overview[1].UserID)
	s.Equal(2, overview[1].Datasets)
	s.Zero(overview[1].Runs)
	s.Empty(overview[1].LatestStatus)
}

func (s *ServiceSuite) TestProjectOverviewDeniesNonMembers() {
	s.datasets.EXPECT().AuthorizeProject(gomock.Any(), project).
		Return(dErrors.New(dErrors.CodeForbidden, "not a member of this project"))

	overview, err := s.service.ProjectOverview(s.ctx, project)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
	s.Nil(overview)
}
