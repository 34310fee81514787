package handler

import (
	"strings"

	"fedlearn/internal/pipeline"
	dErrors "fedlearn/pkg/domain-errors"
)

// maxTargetLength bounds target_variable; column names are cleaned to far less.
const maxTargetLength = 256

// RunRequest is the HTTP request body for pipeline generation and runs.
type RunRequest struct {
	TargetVariable string `json:"target_variable"`
	TaskType       string `json:"task_type"`
}

// Validate normalizes and validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RunRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.TargetVariable) > maxTargetLength {
		return dErrors.New(dErrors.CodeValidation, "target_variable is too long")
	}

	r.TargetVariable = strings.TrimSpace(r.TargetVariable)
	if r.TargetVariable == "" {
		return dErrors.New(dErrors.CodeValidation, "target_variable is required")
	}
	r.TaskType = strings.ToLower(strings.TrimSpace(r.TaskType))
	if r.TaskType == "" {
		return dErrors.New(dErrors.CodeValidation, "task_type is required")
	}
	if _, err := pipeline.ParseTaskType(r.TaskType); err != nil {
		return dErrors.New(dErrors.CodeValidation, "task_type must be classification or regression")
	}
	return nil
}
