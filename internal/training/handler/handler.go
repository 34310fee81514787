package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fedlearn/internal/training/models"
	"fedlearn/internal/training/service"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/platform/httputil"
	"fedlearn/pkg/requestcontext"
)

// Service defines the interface for training operations.
type Service interface {
	GeneratePipeline(ctx context.Context, req service.RunRequest) (*models.Run, error)
	ConfigureAndRun(ctx context.Context, req service.RunRequest) (*models.Run, error)
	Dispatch(ctx context.Context, runID id.RunID) (*models.Run, error)
	GetRun(ctx context.Context, runID id.RunID) (*models.Run, error)
	ListRuns(ctx context.Context, datasetID id.DatasetID) ([]*models.Run, error)
	ProjectOverview(ctx context.Context, projectID id.ProjectID) ([]models.Participant, error)
}

// Handler wires training endpoints to the training service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts training endpoints on the router. Authentication is
// applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Get("/projects/{projectID}/participants", h.HandleParticipants)
	r.Post("/datasets/{datasetID}/pipeline", h.HandleGeneratePipeline)
	r.Post("/datasets/{datasetID}/runs", h.HandleConfigureAndRun)
	r.Get("/datasets/{datasetID}/runs", h.HandleListRuns)
	r.Post("/runs/{runID}/dispatch", h.HandleDispatch)
	r.Get("/runs/{runID}", h.HandleGetRun)
}

// HandleGeneratePipeline handles POST /datasets/{datasetID}/pipeline.
func (h *Handler) HandleGeneratePipeline(w http.ResponseWriter, r *http.Request) {
	h.handleRunRequest(w, r, http.StatusCreated, h.service.GeneratePipeline)
}

// HandleConfigureAndRun handles POST /datasets/{datasetID}/runs. The response
// carries the terminal run.
func (h *Handler) HandleConfigureAndRun(w http.ResponseWriter, r *http.Request) {
	h.handleRunRequest(w, r, http.StatusOK, h.service.ConfigureAndRun)
}

func (h *Handler) handleRunRequest(w http.ResponseWriter, r *http.Request, status int,
	call func(context.Context, service.RunRequest) (*models.Run, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	datasetID, err := id.ParseDatasetID(chi.URLParam(r, "datasetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	run, err := call(ctx, service.RunRequest{
		DatasetID: datasetID,
		Target:    req.TargetVariable,
		TaskType:  req.TaskType,
	})
	if err != nil {
		h.logFailure(ctx, "training request failed", err,
			"request_id", requestID,
			"dataset_id", datasetID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, toRunResponse(run))
}

// HandleDispatch handles POST /runs/{runID}/dispatch.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	run, err := h.service.Dispatch(ctx, runID)
	if err != nil {
		h.logFailure(ctx, "dispatch failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"run_id", runID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRunResponse(run))
}

// HandleGetRun handles GET /runs/{runID}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := id.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRunResponse(run))
}

// HandleListRuns handles GET /datasets/{datasetID}/runs.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	datasetID, err := id.ParseDatasetID(chi.URLParam(r, "datasetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	runs, err := h.service.ListRuns(r.Context(), datasetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := RunListResponse{DatasetID: datasetID.String(), Runs: make([]RunSummaryResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toRunSummary(run))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleParticipants handles GET /projects/{projectID}/participants.
func (h *Handler) HandleParticipants(w http.ResponseWriter, r *http.Request) {
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	participants, err := h.service.ProjectOverview(r.Context(), projectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ParticipantsResponse{
		ProjectID:    int64(projectID),
		Participants: participants,
	})
}

// logFailure logs client errors at WARN and everything else at ERROR.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable:
		h.logger.ErrorContext(ctx, msg, args...)
	default:
		h.logger.WarnContext(ctx, msg, args...)
	}
}
