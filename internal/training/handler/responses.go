package handler

import (
	"time"

	"fedlearn/internal/pipeline"
	"fedlearn/internal/training/models"
)

// RunResponse is the full view of one training run.
type RunResponse struct {
	RunID         string               `json:"run_id"`
	DatasetID     string               `json:"dataset_id"`
	Status        string               `json:"status"`
	Spec          pipeline.Spec        `json:"pipeline"`
	Results       []models.ModelResult `json:"results"`
	Classes       []string             `json:"classes,omitempty"`
	BestModel     string               `json:"best_model,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
	Report        string               `json:"report,omitempty"`
	Explanation   string               `json:"explanation,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	FinishedAt    *time.Time           `json:"finished_at,omitempty"`
}

// RunSummaryResponse is one entry of a run listing.
type RunSummaryResponse struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	Task       string     `json:"task_type"`
	Target     string     `json:"target_variable"`
	BestModel  string     `json:"best_model,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type RunListResponse struct {
	DatasetID string               `json:"dataset_id"`
	Runs      []RunSummaryResponse `json:"runs"`
}

type ParticipantsResponse struct {
	ProjectID    int64                `json:"project_id"`
	Participants []models.Participant `json:"participants"`
}

func toRunResponse(run *models.Run) *RunResponse {
	results := run.Results
	if results == nil {
		results = []models.ModelResult{}
	}
	return &RunResponse{
		RunID:         run.ID.String(),
		DatasetID:     run.DatasetID.String(),
		Status:        string(run.Status),
		Spec:          run.Spec,
		Results:       results,
		Classes:       run.Classes,
		BestModel:     run.BestModel,
		FailureReason: run.FailureReason,
		Report:        run.Report,
		Explanation:   run.Explanation,
		CreatedAt:     run.CreatedAt,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}

func toRunSummary(run *models.Run) RunSummaryResponse {
	return RunSummaryResponse{
		RunID:      run.ID.String(),
		Status:     string(run.Status),
		Task:       string(run.Spec.Task),
		Target:     run.Spec.Target,
		BestModel:  run.BestModel,
		CreatedAt:  run.CreatedAt,
		FinishedAt: run.FinishedAt,
	}
}
