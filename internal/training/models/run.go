package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"fedlearn/internal/pipeline"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
)

// RunStatus is the lifecycle state of a training run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// CanTransitionTo enforces PENDING -> RUNNING -> COMPLETED | FAILED.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning
	case RunStatusRunning:
		return next == RunStatusCompleted || next == RunStatusFailed
	default:
		return false
	}
}

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run is one execution of a pipeline spec against one dataset.
//
// Invariants:
//   - Spec is fixed at construction and never replaced
//   - Status only moves forward; COMPLETED and FAILED are terminal
//   - A COMPLETED run has at least one successful model result
//   - FailureReason is set iff Status is FAILED
type Run struct {
	ID            id.RunID      `json:"id"`
	DatasetID     id.DatasetID  `json:"dataset_id"`
	ProjectID     id.ProjectID  `json:"project_id"`
	UserID        id.UserID     `json:"user_id"`
	Spec          pipeline.Spec `json:"spec"`
	Status        RunStatus     `json:"status"`
	Results       []ModelResult `json:"results"`
	Classes       []string      `json:"classes,omitempty"`
	BestModel     string        `json:"best_model,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Report        string        `json:"report,omitempty"`
	Explanation   string        `json:"explanation,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}

// NewRun creates a PENDING run.
func NewRun(runID id.RunID, datasetID id.DatasetID, projectID id.ProjectID, userID id.UserID, spec pipeline.Spec, now time.Time) (*Run, error) {
	if runID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "run id cannot be nil")
	}
	if datasetID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "dataset id cannot be nil")
	}
	if len(spec.Models) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "pipeline spec has no models")
	}
	return &Run{
		ID:        runID,
		DatasetID: datasetID,
		ProjectID: projectID,
		UserID:    userID,
		Spec:      spec.Clone(),
		Status:    RunStatusPending,
		CreatedAt: now,
	}, nil
}

// CanStart checks the PENDING -> RUNNING transition.
func (r *Run) CanStart() error {
	if !r.Status.CanTransitionTo(RunStatusRunning) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("run is %s, not PENDING", r.Status))
	}
	return nil
}

// Start moves the run to RUNNING.
func (r *Run) Start(now time.Time) error {
	if err := r.CanStart(); err != nil {
		return err
	}
	r.Status = RunStatusRunning
	r.StartedAt = &now
	return nil
}

// Finish records model results. The run completes when at least one model
// succeeded and fails with an aggregated reason otherwise.
func (r *Run) Finish(results []ModelResult, classes []string, now time.Time) error {
	if !r.Status.CanTransitionTo(RunStatusCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("run is %s, not RUNNING", r.Status))
	}
	r.Results = results
	r.Classes = classes
	r.FinishedAt = &now

	var failures []string
	for _, res := range results {
		if res.Failed() {
			failures = append(failures, res.Name+": "+res.Error)
		}
	}
	if len(results) == 0 || len(failures) == len(results) {
		r.Status = RunStatusFailed
		r.FailureReason = "all models failed"
		if len(failures) > 0 {
			r.FailureReason += ": " + strings.Join(failures, "; ")
		}
		return nil
	}
	r.Status = RunStatusCompleted
	r.BestModel = BestModel(r.Spec.Task, results)
	return nil
}

// Fail moves a RUNNING run to FAILED before any model result exists.
func (r *Run) Fail(reason string, now time.Time) error {
	if !r.Status.CanTransitionTo(RunStatusFailed) {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("run is %s, not RUNNING", r.Status))
	}
	r.Status = RunStatusFailed
	r.FailureReason = reason
	r.FinishedAt = &now
	return nil
}

// Succeeded returns the results without an error.
func (r *Run) Succeeded() []ModelResult {
	var out []ModelResult
	for _, res := range r.Results {
		if !res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Clone returns a copy that shares no mutable state with r. Model results
// are treated as immutable once recorded.
func (r *Run) Clone() *Run {
	out := *r
	out.Spec = r.Spec.Clone()
	out.Results = slices.Clone(r.Results)
	out.Classes = slices.Clone(r.Classes)
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
