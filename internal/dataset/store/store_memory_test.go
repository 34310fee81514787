package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fedlearn/internal/crypto"
	"fedlearn/internal/dataset/models"
	"fedlearn/internal/dataset/store"
	id "fedlearn/pkg/domain"
	"fedlearn/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *store.InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.ctx = context.Background()
}

func newDataset(s *suite.Suite, projectID id.ProjectID, userID id.UserID, uploadedAt time.Time) *models.Dataset {
	dsID := id.NewDatasetID()
	d, err := models.NewDataset(dsID, projectID, userID, "data.csv", crypto.FormatAESGCMv1,
		models.BlobKey(projectID, userID, dsID), uploadedAt)
	s.Require().NoError(err)
	d.SizeBytes = 42
	d.RowCount = 3
	d.Columns = []string{"a", "b"}
	d.Checksum = "abc123"
	return d
}

func (s *InMemoryStoreSuite) TestSaveAndFind() {
	d := newDataset(&s.Suite, 1, 7, time.Now())
	s.Require().NoError(s.store.Save(s.ctx, d))

	found, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(d, found)

	found.Columns[0] = "mutated"
	again, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("a", again.Columns[0])
}

func (s *InMemoryStoreSuite) TestNotFound() {
	_, err := s.store.FindByID(s.ctx, id.NewDatasetID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDuplicateIsConflict() {
	d := newDataset(&s.Suite, 1, 7, time.Now())
	s.Require().NoError(s.store.Save(s.ctx, d))
	s.ErrorIs(s.store.Save(s.ctx, d), sentinel.ErrConflict)

	other := newDataset(&s.Suite, 1, 7, time.Now())
	other.BlobKey = d.BlobKey
	s.ErrorIs(s.store.Save(s.ctx, other), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestListByProjectNewestFirst() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := newDataset(&s.Suite, 1, 7, base)
	newer := newDataset(&s.Suite, 1, 8, base.Add(time.Hour))
	elsewhere := newDataset(&s.Suite, 2, 7, base)
	for _, d := range []*models.Dataset{older, newer, elsewhere} {
		s.Require().NoError(s.store.Save(s.ctx, d))
	}

	list, err := s.store.ListByProject(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)
}
