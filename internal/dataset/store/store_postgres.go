package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fedlearn/internal/crypto"
	"fedlearn/internal/dataset/models"
	"fedlearn/internal/platform/postgres"
	id "fedlearn/pkg/domain"
	"fedlearn/pkg/platform/sentinel"
)

// PostgresStore persists dataset records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed dataset store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const datasetColumns = `id, project_id, user_id, filename, format, blob_key, size_bytes,
	row_count, columns, checksum, uploaded_at`

func (s *PostgresStore) Save(ctx context.Context, d *models.Dataset) error {
	query := `INSERT INTO datasets (` + datasetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(d.ID),
		int64(d.ProjectID),
		int64(d.UserID),
		d.Filename,
		string(d.Format),
		d.BlobKey,
		d.SizeBytes,
		d.RowCount,
		pq.Array(d.Columns),
		d.Checksum,
		d.UploadedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, datasetID id.DatasetID) (*models.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, uuid.UUID(datasetID))
	d, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find dataset by id: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID id.ProjectID) ([]*models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE project_id = $1 ORDER BY uploaded_at DESC, id`,
		int64(projectID))
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Dataset, 0)
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (*models.Dataset, error) {
	var (
		d         models.Dataset
		datasetID uuid.UUID
		projectID int64
		userID    int64
		format    string
	)
	err := row.Scan(
		&datasetID,
		&projectID,
		&userID,
		&d.Filename,
		&format,
		&d.BlobKey,
		&d.SizeBytes,
		&d.RowCount,
		pq.Array(&d.Columns),
		&d.Checksum,
		&d.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	f, err := crypto.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, err)
	}
	d.ID = id.DatasetID(datasetID)
	d.ProjectID = id.ProjectID(projectID)
	d.UserID = id.UserID(userID)
	d.Format = f
	return &d, nil
}
