package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fedlearn/internal/pipeline"
	"fedlearn/internal/training/handler/mocks"
	"fedlearn/internal/training/models"
	"fedlearn/internal/training/service"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/requestcontext"
	"fedlearn/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks
type TrainingHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestTrainingHandlerSuite(t *testing.T) {
	suite.Run(t, new(TrainingHandlerSuite))
}

func (s *TrainingHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.service, logger).Register(r)
	s.router = r
}

func (s *TrainingHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.WithUserID(testutil.NewJSONRequest(s.T(), method, path, body), 7)
	return testutil.DoRequest(s.router, req)
}

func (s *TrainingHandlerSuite) completedRun(datasetID id.DatasetID) *models.Run {
	finished := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	return &models.Run{
		ID:        id.NewRunID(),
		DatasetID: datasetID,
		UserID:    7,
		Spec:      pipeline.Spec{Task: pipeline.TaskRegression, Target: "price"},
		Status:    models.RunStatusCompleted,
		Results: []models.ModelResult{{
			Name:       "linear_regression",
			Metrics:    map[string]float64{"r2": 0.93},
			Importance: map[string]float64{"age": 60, "city": 40},
		}},
		BestModel:  "linear_regression",
		CreatedAt:  finished.Add(-5 * time.Second),
		FinishedAt: &finished,
	}
}

func (s *TrainingHandlerSuite) TestConfigureAndRun() {
	datasetID := id.NewDatasetID()
	run := s.completedRun(datasetID)
	s.service.EXPECT().ConfigureAndRun(gomock.Any(), service.RunRequest{
		DatasetID: datasetID,
		Target:    "price",
		TaskType:  "regression",
	}).Return(run, nil)

	rec := s.do(http.MethodPost, "/datasets/"+datasetID.String()+"/runs",
		RunRequest{TargetVariable: " price ", TaskType: "Regression"})
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(run.ID.String(), resp["run_id"])
	s.Equal("COMPLETED", resp["status"])
	s.Equal("linear_regression", resp["best_model"])
	results := resp["results"].([]any)
	s.Len(results, 1)
	first := results[0].(map[string]any)
	s.Equal("linear_regression", first["model_name"])
	s.Contains(first, "normalized_feature_importance")
}

func (s *TrainingHandlerSuite) TestGeneratePipelineCreated() {
	datasetID := id.NewDatasetID()
	run := &models.Run{ID: id.NewRunID(), DatasetID: datasetID, Status: models.RunStatusPending}
	s.service.EXPECT().GeneratePipeline(gomock.Any(), gomock.Any()).Return(run, nil)

	rec := s.do(http.MethodPost, "/datasets/"+datasetID.String()+"/pipeline",
		RunRequest{TargetVariable: "label", TaskType: "classification"})
	s.Equal(http.StatusCreated, rec.Code)

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("PENDING", resp["status"])
	s.Equal([]any{}, resp["results"])
}

func (s *TrainingHandlerSuite) TestRequestValidation() {
	datasetID := id.NewDatasetID().String()
	cases := []struct {
		name string
		path string
		body any
		code int
	}{
		{"missing target", "/datasets/" + datasetID + "/runs", RunRequest{TaskType: "regression"}, http.StatusBadRequest},
		{"unknown task", "/datasets/" + datasetID + "/runs", RunRequest{TargetVariable: "y", TaskType: "ranking"}, http.StatusBadRequest},
		{"malformed dataset id", "/datasets/not-a-uuid/runs", RunRequest{TargetVariable: "y", TaskType: "regression"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.do(http.MethodPost, tc.path, tc.body)
			s.Equal(tc.code, rec.Code)
		})
	}
}

func (s *TrainingHandlerSuite) TestServiceErrorsMapToStatus() {
	runID := id.NewRunID()
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"duplicate dispatch", dErrors.New(dErrors.CodeConflict, "run is already being dispatched"), http.StatusConflict},
		{"not found", dErrors.New(dErrors.CodeNotFound, "run not found"), http.StatusNotFound},
		{"foreign run", dErrors.New(dErrors.CodeForbidden, "run belongs to another user"), http.StatusForbidden},
		{"internal", dErrors.New(dErrors.CodeInternal, "failed to execute run"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Dispatch(gomock.Any(), runID).Return(nil, tc.err)
			rec := s.do(http.MethodPost, "/runs/"+runID.String()+"/dispatch", nil)
			testutil.AssertStatusAndError(s.T(), rec, tc.code, string(dErrors.CodeOf(tc.err)))
			body := testutil.UnmarshalErrorResponse(s.T(), rec)
			if tc.code == http.StatusInternalServerError {
				s.Empty(body["error_description"])
			}
		})
	}
}

func (s *TrainingHandlerSuite) TestListRuns() {
	datasetID := id.NewDatasetID()
	s.service.EXPECT().ListRuns(gomock.Any(), datasetID).
		Return([]*models.Run{s.completedRun(datasetID)}, nil)

	rec := s.do(http.MethodGet, "/datasets/"+datasetID.String()+"/runs", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	resp := testutil.UnmarshalResponse[RunListResponse](s.T(), rec)
	s.Require().Len(resp.Runs, 1)
	s.Equal("regression", resp.Runs[0].Task)
	s.Equal("price", resp.Runs[0].Target)
}

func (s *TrainingHandlerSuite) TestParticipants() {
	s.service.EXPECT().ProjectOverview(gomock.Any(), id.ProjectID(3)).Return([]models.Participant{
		{UserID: 7, Datasets: 2, Runs: 1, LatestStatus: models.RunStatusCompleted},
		{UserID: 9, Datasets: 1},
	}, nil)

	rec := s.do(http.MethodGet, "/projects/3/participants", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	resp := testutil.UnmarshalResponse[ParticipantsResponse](s.T(), rec)
	s.Equal(int64(3), resp.ProjectID)
	s.Len(resp.Participants, 2)
}

func (s *TrainingHandlerSuite) TestGetRunUsesCallerContext() {
	runID := id.NewRunID()
	s.service.EXPECT().GetRun(gomock.Any(), runID).
		DoAndReturn(func(ctx context.Context, _ id.RunID) (*models.Run, error) {
			s.Equal(id.UserID(7), requestcontext.UserID(ctx))
			return &models.Run{ID: runID, Status: models.RunStatusRunning}, nil
		})

	rec := s.do(http.MethodGet, "/runs/"+runID.String(), nil)
	s.Equal(http.StatusOK, rec.Code)
}
