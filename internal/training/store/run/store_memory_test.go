package run_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fedlearn/internal/pipeline"
	"fedlearn/internal/training/models"
	"fedlearn/internal/training/store/run"
	id "fedlearn/pkg/domain"
	"fedlearn/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *run.InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = run.NewInMemoryStore()
	s.ctx = context.Background()
}

func newRun(s *suite.Suite, datasetID id.DatasetID, projectID id.ProjectID, createdAt time.Time) *models.Run {
	spec := pipeline.Spec{
		Task:   pipeline.TaskClassification,
		Target: "label",
		Models: []pipeline.Model{{Name: "decision_tree", Family: pipeline.FamilyTree, Hyperparameters: map[string]float64{"max_depth": 3}}},
	}
	r, err := models.NewRun(id.NewRunID(), datasetID, projectID, 9, spec, createdAt)
	s.Require().NoError(err)
	return r
}

func (s *InMemoryStoreSuite) TestSaveAndFind() {
	r := newRun(&s.Suite, id.NewDatasetID(), 1, time.Now())
	s.Require().NoError(s.store.Save(s.ctx, r))

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, found.ID)
	s.Equal(models.RunStatusPending, found.Status)

	s.Run("copies isolate the stored run", func() {
		s.Require().NoError(r.Start(time.Now()))
		again, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(models.RunStatusPending, again.Status)

		again.Spec.Models[0].Hyperparameters["max_depth"] = 99
		fresh, err := s.store.FindByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(3.0, fresh.Spec.Models[0].Hyperparameters["max_depth"])
	})

	s.Run("missing run", func() {
		_, err := s.store.FindByID(s.ctx, id.NewRunID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListing() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := id.NewDatasetID()
	older := newRun(&s.Suite, ds, 1, base)
	newer := newRun(&s.Suite, ds, 1, base.Add(time.Hour))
	other := newRun(&s.Suite, id.NewDatasetID(), 2, base)
	for _, r := range []*models.Run{older, newer, other} {
		s.Require().NoError(s.store.Save(s.ctx, r))
	}

	byDataset, err := s.store.ListByDataset(s.ctx, ds)
	s.Require().NoError(err)
	s.Require().Len(byDataset, 2)
	s.Equal(newer.ID, byDataset[0].ID)

	byProject, err := s.store.ListByProject(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(byProject, 1)
	s.Equal(other.ID, byProject[0].ID)

	none, err := s.store.ListByProject(s.ctx, 3)
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}
