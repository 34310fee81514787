package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fedlearn/internal/dataset/models"
	"fedlearn/internal/dataset/service"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/platform/httputil"
	"fedlearn/pkg/requestcontext"
)

// multipartOverhead is the slack allowed on top of the payload limit for
// multipart boundaries and part headers.
const multipartOverhead = 64 << 10

// Service defines the interface for dataset operations.
type Service interface {
	Upload(ctx context.Context, req service.UploadRequest) (*models.Dataset, error)
	List(ctx context.Context, projectID id.ProjectID) ([]*models.Dataset, error)
	EncryptionStatus(ctx context.Context, projectID id.ProjectID) (*models.EncryptionStatus, error)
	MaxUploadBytes() int64
}

// Handler wires dataset endpoints to the dataset service.
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

// Register mounts dataset endpoints on the router. Authentication is applied
// by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/projects/{projectID}/datasets", h.HandleUpload)
	r.Get("/projects/{projectID}/datasets", h.HandleList)
	r.Get("/projects/{projectID}/encryption-status", h.HandleEncryptionStatus)
}

// HandleUpload handles POST /projects/{projectID}/datasets. The table is sent
// either as the raw request body (filename in ?filename=) or as the "file"
// part of a multipart form.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filename, data, err := h.readUpload(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read upload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	d, err := h.service.Upload(ctx, service.UploadRequest{
		ProjectID: projectID,
		Filename:  filename,
		Data:      data,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "dataset upload failed",
			"request_id", requestID,
			"project_id", projectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "dataset upload handled",
		"request_id", requestID,
		"dataset_id", d.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toUploadResponse(d))
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := h.service.MaxUploadBytes()
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, uploadError(err, `multipart upload needs a "file" part`)
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			return "", nil, uploadError(err, "failed to read upload")
		}
		return header.Filename, data, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+1)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, uploadError(err, "failed to read upload")
	}
	return r.URL.Query().Get("filename"), data, nil
}

func uploadError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dErrors.New(dErrors.CodeValidation, "dataset exceeds the upload size limit")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
}

// HandleList handles GET /projects/{projectID}/datasets.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	datasets, err := h.service.List(r.Context(), projectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{ProjectID: int64(projectID), Datasets: make([]DatasetResponse, 0, len(datasets))}
	for _, d := range datasets {
		resp.Datasets = append(resp.Datasets, toDatasetResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleEncryptionStatus handles GET /projects/{projectID}/encryption-status.
func (h *Handler) HandleEncryptionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.service.EncryptionStatus(ctx, projectID)
	if err != nil {
		h.logger.WarnContext(ctx, "encryption status failed",
			"request_id", requestcontext.RequestID(ctx),
			"project_id", projectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
