package pipeline

import "errors"

var (
	// ErrInvalidTask is returned when the target is missing from the profile,
	// the task type is unknown, or the target cannot support the task.
	ErrInvalidTask = errors.New("invalid task")
	// ErrInsufficientData is returned when there are too few rows or usable
	// features for the chosen validation strategy.
	ErrInsufficientData = errors.New("insufficient data")
)
