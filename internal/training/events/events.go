// Package events publishes training run lifecycle events.
package events

import (
	"context"
	"sync"
	"time"

	"fedlearn/internal/training/models"
)

type Type string

const (
	RunCreated   Type = "run.created"
	RunStarted   Type = "run.started"
	RunCompleted Type = "run.completed"
	RunFailed    Type = "run.failed"
)

// Event is the wire shape of a lifecycle event. It never carries dataset
// content or model internals.
type Event struct {
	Type      Type      `json:"type"`
	RunID     string    `json:"run_id"`
	DatasetID string    `json:"dataset_id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	BestModel string    `json:"best_model,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FromRun builds the event for run's current status.
func FromRun(run *models.Run, now time.Time) Event {
	t := RunCreated
	switch run.Status {
	case models.RunStatusRunning:
		t = RunStarted
	case models.RunStatusCompleted:
		t = RunCompleted
	case models.RunStatusFailed:
		t = RunFailed
	}
	return Event{
		Type:      t,
		RunID:     run.ID.String(),
		DatasetID: run.DatasetID.String(),
		ProjectID: int64(run.ProjectID),
		UserID:    int64(run.UserID),
		Status:    string(run.Status),
		BestModel: run.BestModel,
		Reason:    run.FailureReason,
		Timestamp: now,
	}
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// MemoryPublisher records events in order. Used when no broker is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
