//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "fedlearn/pkg/platform/audit"
	auditpostgres "fedlearn/pkg/platform/audit/store/postgres"
	"fedlearn/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) TestAppendDerivesCategory() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: now,
		UserID:    7,
		ProjectID: 3,
		Subject:   "dataset-1",
		Action:    string(audit.EventDatasetDecryptFailed),
		Reason:    "authentication failed",
	}))

	events, err := s.store.ListByUser(ctx, 7)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal("dataset-1", events[0].Subject)
	s.True(now.Equal(events[0].Timestamp))
}

func (s *AuditStoreSuite) TestListRecent() {
	ctx := context.Background()
	base := time.Now().UTC()
	for i, action := range []audit.AuditEvent{audit.EventDatasetUploaded, audit.EventDatasetDecrypted, audit.EventDatasetLegacyRead} {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			UserID:    9,
			ProjectID: 3,
			Subject:   "dataset-2",
			Action:    string(action),
		}))
	}

	recent, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(string(audit.EventDatasetLegacyRead), recent[0].Action)
}
