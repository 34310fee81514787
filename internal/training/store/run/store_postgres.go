package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fedlearn/internal/pipeline"
	"fedlearn/internal/training/models"
	id "fedlearn/pkg/domain"
	"fedlearn/pkg/platform/sentinel"
)

// PostgresStore persists runs in PostgreSQL. The pipeline spec and per-model results
// are stored as JSONB; model names and classes as text arrays for querying.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed run store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const runColumns = `id, dataset_id, project_id, user_id, status, spec, results, classes,
	best_model, failure_reason, report, explanation, created_at, started_at, finished_at`

func (s *PostgresStore) Save(ctx context.Context, run *models.Run) error {
	spec, err := json.Marshal(run.Spec)
	if err != nil {
		return fmt.Errorf("marshal run spec: %w", err)
	}
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshal run results: %w", err)
	}
	modelNames := make([]string, len(run.Spec.Models))
	for i, m := range run.Spec.Models {
		modelNames[i] = m.Name
	}

	query := `
		INSERT INTO training_runs (` + runColumns + `, model_names)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			results = EXCLUDED.results,
			classes = EXCLUDED.classes,
			best_model = EXCLUDED.best_model,
			failure_reason = EXCLUDED.failure_reason,
			report = EXCLUDED.report,
			explanation = EXCLUDED.explanation,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(run.ID),
		uuid.UUID(run.DatasetID),
		int64(run.ProjectID),
		int64(run.UserID),
		string(run.Status),
		spec,
		results,
		pq.Array(run.Classes),
		run.BestModel,
		run.FailureReason,
		run.Report,
		run.Explanation,
		run.CreatedAt,
		run.StartedAt,
		run.FinishedAt,
		pq.Array(modelNames),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, runID id.RunID) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM training_runs WHERE id = $1`, uuid.UUID(runID))
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find run by id: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) ListByDataset(ctx context.Context, datasetID id.DatasetID) ([]*models.Run, error) {
	return s.list(ctx, `WHERE dataset_id = $1`, uuid.UUID(datasetID))
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID id.ProjectID) ([]*models.Run, error) {
	return s.list(ctx, `WHERE project_id = $1`, int64(projectID))
}

func (s *PostgresStore) list(ctx context.Context, where string, arg any) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM training_runs `+where+` ORDER BY created_at DESC, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run                 models.Run
		runID, datasetID    uuid.UUID
		projectID, userID   int64
		status              string
		spec, results       []byte
		classes             []string
		startedAt, finished sql.NullTime
	)
	err := row.Scan(
		&runID, &datasetID, &projectID, &userID, &status, &spec, &results, pq.Array(&classes),
		&run.BestModel, &run.FailureReason, &run.Report, &run.Explanation,
		&run.CreatedAt, &startedAt, &finished,
	)
	if err != nil {
		return nil, err
	}
	run.ID = id.RunID(runID)
	run.DatasetID = id.DatasetID(datasetID)
	run.ProjectID = id.ProjectID(projectID)
	run.UserID = id.UserID(userID)
	run.Status = models.RunStatus(status)
	run.Classes = classes

	var decoded pipeline.Spec
	if err := json.Unmarshal(spec, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal run spec: %w", err)
	}
	run.Spec = decoded
	if len(results) > 0 {
		if err := json.Unmarshal(results, &run.Results); err != nil {
			return nil, fmt.Errorf("unmarshal run results: %w", err)
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
