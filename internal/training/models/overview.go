package models

import (
	"time"

	id "fedlearn/pkg/domain"
)

// Participant summarizes one user's activity within a project. Runs are
// independent per user; nothing here is aggregated across users' models.
type Participant struct {
	UserID       id.UserID `json:"user_id"`
	Datasets     int       `json:"datasets"`
	Runs         int       `json:"runs"`
	LatestStatus RunStatus `json:"latest_status,omitempty"`
	LatestRunAt  time.Time `json:"latest_run_at,omitzero"`
	BestModel    string    `json:"best_model,omitempty"`
}
