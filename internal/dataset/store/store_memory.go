package store

import (
	"context"
	"sort"
	"sync"

	"fedlearn/internal/dataset/models"
	id "fedlearn/pkg/domain"
	"fedlearn/pkg/platform/sentinel"
)

// InMemoryStore keeps dataset records in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	datasets map[id.DatasetID]*models.Dataset
	blobKeys map[string]id.DatasetID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		datasets: make(map[id.DatasetID]*models.Dataset),
		blobKeys: make(map[string]id.DatasetID),
	}
}

// Save inserts a new record. A second record pointing at the same blob is a
// conflict.
func (s *InMemoryStore) Save(_ context.Context, d *models.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.blobKeys[d.BlobKey]; ok && owner != d.ID {
		return sentinel.ErrConflict
	}
	if _, ok := s.datasets[d.ID]; ok {
		return sentinel.ErrConflict
	}
	s.datasets[d.ID] = d.Clone()
	s.blobKeys[d.BlobKey] = d.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, datasetID id.DatasetID) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.datasets[datasetID]; ok {
		return d.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByProject returns a project's datasets, newest first.
func (s *InMemoryStore) ListByProject(_ context.Context, projectID id.ProjectID) ([]*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Dataset, 0)
	for _, d := range s.datasets {
		if d.ProjectID == projectID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}
