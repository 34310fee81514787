// Package domain holds typed identifiers shared across modules.
package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "fedlearn/pkg/domain-errors"
)

// DatasetID identifies an uploaded dataset.
type DatasetID uuid.UUID

// RunID identifies a training run.
type RunID uuid.UUID

// ProjectID identifies a shared project. Projects are owned by an external
// membership service and are numbered there.
type ProjectID int64

// UserID identifies a project participant in the external account service.
type UserID int64

func NewDatasetID() DatasetID { return DatasetID(uuid.New()) }
func NewRunID() RunID         { return RunID(uuid.New()) }

func (id DatasetID) String() string { return uuid.UUID(id).String() }
func (id RunID) String() string     { return uuid.UUID(id).String() }
func (id ProjectID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id UserID) String() string    { return strconv.FormatInt(int64(id), 10) }

func (id DatasetID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RunID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func parseUUID(kind, s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return parsed, nil
}

func parsePositive(kind, s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return n, nil
}

// ParseDatasetID parses a non-nil UUID.
func ParseDatasetID(s string) (DatasetID, error) {
	u, err := parseUUID("dataset_id", s)
	return DatasetID(u), err
}

// ParseRunID parses a non-nil UUID.
func ParseRunID(s string) (RunID, error) {
	u, err := parseUUID("run_id", s)
	return RunID(u), err
}

// ParseProjectID parses a positive integer.
func ParseProjectID(s string) (ProjectID, error) {
	n, err := parsePositive("project_id", s)
	return ProjectID(n), err
}

// ParseUserID parses a positive integer.
func ParseUserID(s string) (UserID, error) {
	n, err := parsePositive("user_id", s)
	return UserID(n), err
}

func (id DatasetID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id RunID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *DatasetID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *RunID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
