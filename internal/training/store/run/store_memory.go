package run

import (
	"context"
	"sort"
	"sync"

	"fedlearn/internal/training/models"
	id "fedlearn/pkg/domain"
	"fedlearn/pkg/platform/sentinel"
)

// InMemoryStore keeps runs in process memory. Runs are copied on the way in
// and out so callers never share a *Run with the store.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[id.RunID]*models.Run
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[id.RunID]*models.Run)}
}

func (s *InMemoryStore) Save(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, runID id.RunID) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.runs[runID]; ok {
		return r.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByDataset(_ context.Context, datasetID id.DatasetID) ([]*models.Run, error) {
	return s.list(func(r *models.Run) bool { return r.DatasetID == datasetID }), nil
}

func (s *InMemoryStore) ListByProject(_ context.Context, projectID id.ProjectID) ([]*models.Run, error) {
	return s.list(func(r *models.Run) bool { return r.ProjectID == projectID }), nil
}

// list returns matching runs, newest first.
func (s *InMemoryStore) list(match func(*models.Run) bool) []*models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Run, 0)
	for _, r := range s.runs {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
