package models

import (
	"strings"
	"time"

	"fedlearn/internal/crypto"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
)

// Dataset is the stored record of one uploaded table. The payload itself
// lives in the blob store under BlobKey.
//
// Invariants:
//   - Format is fixed at upload and decides how the payload is read back
//   - Checksum is the SHA-256 of the plaintext, never of the ciphertext
type Dataset struct {
	ID         id.DatasetID  `json:"id"`
	ProjectID  id.ProjectID  `json:"project_id"`
	UserID     id.UserID     `json:"user_id"`
	Filename   string        `json:"filename"`
	Format     crypto.Format `json:"format"`
	BlobKey    string        `json:"-"`
	SizeBytes  int64         `json:"size_bytes"`
	RowCount   int           `json:"row_count"`
	Columns    []string      `json:"columns"`
	Checksum   string        `json:"checksum"`
	UploadedAt time.Time     `json:"uploaded_at"`
}

// NewDataset validates a dataset record before it is stored.
func NewDataset(datasetID id.DatasetID, projectID id.ProjectID, userID id.UserID, filename string, format crypto.Format, blobKey string, now time.Time) (*Dataset, error) {
	if datasetID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "dataset id cannot be nil")
	}
	if projectID <= 0 || userID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "dataset needs a project and an owner")
	}
	if _, err := crypto.ParseFormat(string(format)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "unknown payload format")
	}
	if strings.TrimSpace(blobKey) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "blob key cannot be empty")
	}
	return &Dataset{
		ID:         datasetID,
		ProjectID:  projectID,
		UserID:     userID,
		Filename:   filename,
		Format:     format,
		BlobKey:    blobKey,
		UploadedAt: now,
	}, nil
}

func (d *Dataset) Encrypted() bool {
	return d.Format.IsEncrypted()
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	c := *d
	c.Columns = append([]string(nil), d.Columns...)
	return &c
}

// BlobKey is the object name for a dataset payload.
func BlobKey(projectID id.ProjectID, userID id.UserID, datasetID id.DatasetID) string {
	return "projects/" + projectID.String() + "/users/" + userID.String() + "/" + datasetID.String() + ".bin"
}
