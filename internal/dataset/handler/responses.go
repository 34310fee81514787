package handler

import (
	"time"

	"fedlearn/internal/dataset/models"
)

// UploadResponse is the HTTP response for a stored dataset.
type UploadResponse struct {
	DatasetID string   `json:"dataset_id"`
	Filename  string   `json:"filename"`
	Encrypted bool     `json:"encrypted"`
	RowCount  int      `json:"row_count"`
	Columns   []string `json:"columns"`
	Checksum  string   `json:"checksum"`
}

type DatasetResponse struct {
	DatasetID  string    `json:"dataset_id"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	SizeBytes  int64     `json:"size_bytes"`
	RowCount   int       `json:"row_count"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type ListResponse struct {
	ProjectID int64             `json:"project_id"`
	Datasets  []DatasetResponse `json:"datasets"`
}

func toUploadResponse(d *models.Dataset) *UploadResponse {
	return &UploadResponse{
		DatasetID: d.ID.String(),
		Filename:  d.Filename,
		Encrypted: d.Encrypted(),
		RowCount:  d.RowCount,
		Columns:   d.Columns,
		Checksum:  d.Checksum,
	}
}

func toDatasetResponse(d *models.Dataset) DatasetResponse {
	return DatasetResponse{
		DatasetID:  d.ID.String(),
		Filename:   d.Filename,
		Format:     string(d.Format),
		SizeBytes:  d.SizeBytes,
		RowCount:   d.RowCount,
		Columns:    d.Columns,
		UploadedAt: d.UploadedAt,
	}
}
