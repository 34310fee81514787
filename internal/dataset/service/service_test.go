package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fedlearn/internal/crypto"
	"fedlearn/internal/dataset/blob"
	"fedlearn/internal/dataset/models"
	"fedlearn/internal/dataset/projects"
	"fedlearn/internal/dataset/store"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/platform/audit"
	"fedlearn/pkg/platform/audit/publishers/compliance"
	auditmemory "fedlearn/pkg/platform/audit/store/memory"
	"fedlearn/pkg/platform/sentinel"
	"fedlearn/pkg/requestcontext"
)

const (
	alice   id.UserID    = 11
	bob     id.UserID    = 12
	carol   id.UserID    = 13
	project id.ProjectID = 4
	// uncoded has members but no key derivation code.
	uncoded id.ProjectID = 99
)

var csvPayload = []byte("age;city;income\n34;Paris;52000\n41;Lyon;61000\n29;Nice;38000\n")

type DatasetServiceSuite struct {
	suite.Suite
	ctx      context.Context
	logs     *bytes.Buffer
	store    *store.InMemoryStore
	blobs    *blob.MemoryStore
	keys     *crypto.KeyDeriver
	projects *projects.StaticDirectory
	audits   *auditmemory.InMemoryStore
	service  *Service
}

func TestDatasetServiceSuite(t *testing.T) {
	suite.Run(t, new(DatasetServiceSuite))
}

func (s *DatasetServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithUserID(context.Background(), alice)
	s.logs = &bytes.Buffer{}
	s.store = store.NewInMemoryStore()
	s.blobs = blob.NewMemoryStore()
	s.projects = projects.NewStaticDirectory(map[int64]string{int64(project): "CARDIO"}, map[int64][]int64{
		int64(project): {int64(alice), int64(bob)},
		int64(uncoded): {int64(alice)},
	})
	keys, err := crypto.NewKeyDeriver([]byte("dataset-service-test-salt"))
	s.Require().NoError(err)
	s.keys = keys
	s.audits = auditmemory.NewInMemoryStore()
	s.service = New(s.store, s.blobs, s.projects, s.keys,
		WithLogger(slog.New(slog.NewTextHandler(s.logs, nil))),
		WithAuditor(compliance.New(s.audits)),
		WithMaxUploadBytes(1024),
		WithClock(func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }),
	)
}

func (s *DatasetServiceSuite) upload(ctx context.Context, data []byte) *models.Dataset {
	d, err := s.service.Upload(ctx, UploadRequest{ProjectID: project, Filename: "uploads/income.csv", Data: data})
	s.Require().NoError(err)
	return d
}

func (s *DatasetServiceSuite) TestUploadEncryptsAndLoadDecrypts() {
	d := s.upload(s.ctx, csvPayload)
	s.Equal(crypto.FormatAESGCMv1, d.Format)
	s.Equal("income.csv", d.Filename)
	s.Equal(3, d.RowCount)
	s.Equal([]string{"age", "city", "income"}, d.Columns)
	s.Equal(int64(len(csvPayload)), d.SizeBytes)

	stored, err := s.blobs.Get(s.ctx, d.BlobKey)
	s.Require().NoError(err)
	s.NotContains(string(stored), "Paris")
	s.Equal(len(csvPayload)+12+16, len(stored))

	t, err := s.service.Load(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(3, t.Len())
	s.Equal("Lyon", t.Value(1, 1))
}

func (s *DatasetServiceSuite) TestSamePayloadEncryptsDifferently() {
	first := s.upload(s.ctx, csvPayload)
	second := s.upload(s.ctx, csvPayload)

	a, err := s.blobs.Get(s.ctx, first.BlobKey)
	s.Require().NoError(err)
	b, err := s.blobs.Get(s.ctx, second.BlobKey)
	s.Require().NoError(err)
	s.NotEqual(a, b)
	s.Equal(first.Checksum, second.Checksum)
}

func (s *DatasetServiceSuite) TestUploadRejections() {
	cases := []struct {
		name    string
		ctx     context.Context
		project id.ProjectID
		data    []byte
		code    dErrors.Code
	}{
		{"anonymous", context.Background(), project, csvPayload, dErrors.CodeUnauthorized},
		{"empty", s.ctx, project, nil, dErrors.CodeValidation},
		{"too large", s.ctx, project, bytes.Repeat([]byte("a,b\n"), 300), dErrors.CodeValidation},
		{"binary", s.ctx, project, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00"), dErrors.CodeValidation},
		{"single column", s.ctx, project, []byte("only\n1\n2\n"), dErrors.CodeValidation},
		{"project without code", s.ctx, uncoded, csvPayload, dErrors.CodeNotFound},
		{"not a member", requestcontext.WithUserID(context.Background(), carol), project, csvPayload, dErrors.CodeForbidden},
		{"unknown project", s.ctx, 1234, csvPayload, dErrors.CodeForbidden},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Upload(tc.ctx, UploadRequest{ProjectID: tc.project, Data: tc.data})
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (s *DatasetServiceSuite) TestLoadIsOwnerOnly() {
	d := s.upload(s.ctx, csvPayload)

	_, err := s.service.Load(requestcontext.WithUserID(context.Background(), bob), d.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Load(s.ctx, id.NewDatasetID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DatasetServiceSuite) TestLegacyPlaintextIsReadByTag() {
	legacy := s.saveLegacy(alice, csvPayload)

	t, err := s.service.Load(s.ctx, legacy.ID)
	s.Require().NoError(err)
	s.Equal(3, t.Len())
	s.Contains(s.logs.String(), "reading legacy plaintext dataset")
	s.Contains(s.logs.String(), legacy.ID.String())
}

func (s *DatasetServiceSuite) TestTamperedCiphertextNeverFallsBack() {
	d := s.upload(s.ctx, csvPayload)
	stored, err := s.blobs.Get(s.ctx, d.BlobKey)
	s.Require().NoError(err)
	stored[len(stored)/2] ^= 0xff
	s.Require().NoError(s.blobs.Put(s.ctx, d.BlobKey, stored))

	_, err = s.service.Load(s.ctx, d.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, crypto.ErrDecryption)
	s.NotContains(s.logs.String(), "legacy plaintext")
}

func (s *DatasetServiceSuite) TestPlaintextUnderEncryptedTagFails() {
	d := s.upload(s.ctx, csvPayload)
	s.Require().NoError(s.blobs.Put(s.ctx, d.BlobKey, csvPayload))

	_, err := s.service.Load(s.ctx, d.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *DatasetServiceSuite) TestEncryptionStatus() {
	s.upload(s.ctx, csvPayload)
	s.upload(requestcontext.WithUserID(context.Background(), bob), csvPayload)
	s.saveLegacy(alice, csvPayload)

	status, err := s.service.EncryptionStatus(s.ctx, project)
	s.Require().NoError(err)
	s.Equal(2, status.EncryptedCount)
	s.Equal(3, status.TotalCount)
	s.InDelta(66.67, status.EncryptionRate, 0.01)
	s.Equal(crypto.Algorithm, status.Algorithm)
	s.Contains(status.KeyDerivation, "PBKDF2")
	s.NotEmpty(status.Limitations)

	key, err := s.keys.Derive("CARDIO", int64(alice))
	s.Require().NoError(err)
	s.Equal(s.keys.Fingerprint(key), status.KeyFingerprint)

	bobStatus, err := s.service.EncryptionStatus(requestcontext.WithUserID(context.Background(), bob), project)
	s.Require().NoError(err)
	s.NotEqual(status.KeyFingerprint, bobStatus.KeyFingerprint)
	s.Contains(s.auditActions(bob), string(audit.EventEncryptionStatusViewed))
}

func (s *DatasetServiceSuite) TestEncryptionStatusOfEmptyProject() {
	status, err := s.service.EncryptionStatus(s.ctx, project)
	s.Require().NoError(err)
	s.Zero(status.TotalCount)
	s.Zero(status.EncryptionRate)
}

func (s *DatasetServiceSuite) TestNonMembersAreDenied() {
	outsider := requestcontext.WithUserID(context.Background(), carol)

	_, err := s.service.Upload(outsider, UploadRequest{ProjectID: project, Data: csvPayload})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
	_, err = s.service.EncryptionStatus(outsider, project)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
	s.True(dErrors.HasCode(s.service.AuthorizeProject(outsider, project), dErrors.CodeForbidden))

	s.Equal([]string{
		string(audit.EventDatasetAccessDenied),
		string(audit.EventDatasetAccessDenied),
		string(audit.EventDatasetAccessDenied),
	}, s.auditActions(carol))
	s.Contains(s.logs.String(), "project access denied")

	list, err := s.service.List(s.ctx, project)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *DatasetServiceSuite) TestAuthorizeProject() {
	s.NoError(s.service.AuthorizeProject(s.ctx, project))
	s.True(dErrors.HasCode(s.service.AuthorizeProject(context.Background(), project), dErrors.CodeUnauthorized))
}

type failingDatasetStore struct {
	*store.InMemoryStore
	err error
}

func (f failingDatasetStore) Save(context.Context, *models.Dataset) error { return f.err }

type keyRecordingBlobs struct {
	*blob.MemoryStore
	keys []string
}

func (k *keyRecordingBlobs) Put(ctx context.Context, key string, data []byte) error {
	k.keys = append(k.keys, key)
	return k.MemoryStore.Put(ctx, key, data)
}

func (s *DatasetServiceSuite) TestFailedSaveRemovesPayload() {
	cases := []struct {
		name string
		err  error
		code dErrors.Code
	}{
		{"conflict", sentinel.ErrConflict, dErrors.CodeConflict},
		{"database down", errors.New("connection refused"), dErrors.CodeInternal},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			blobs := &keyRecordingBlobs{MemoryStore: blob.NewMemoryStore()}
			svc := New(failingDatasetStore{InMemoryStore: s.store, err: tc.err}, blobs, s.projects, s.keys,
				WithLogger(slog.New(slog.NewTextHandler(s.logs, nil))))

			_, err := svc.Upload(s.ctx, UploadRequest{ProjectID: project, Data: csvPayload})
			s.True(dErrors.HasCode(err, tc.code), "got %v", err)
			s.Require().Len(blobs.keys, 1)
			_, err = blobs.Get(s.ctx, blobs.keys[0])
			s.ErrorIs(err, sentinel.ErrNotFound, "payload of an unsaved dataset is removed")
		})
	}
}

func (s *DatasetServiceSuite) TestListAndCounts() {
	s.upload(s.ctx, csvPayload)
	s.upload(s.ctx, csvPayload)
	s.upload(requestcontext.WithUserID(context.Background(), bob), csvPayload)

	mine, err := s.service.List(s.ctx, project)
	s.Require().NoError(err)
	s.Len(mine, 2)

	counts, err := s.service.CountByUser(s.ctx, project)
	s.Require().NoError(err)
	s.Equal(map[id.UserID]int{alice: 2, bob: 1}, counts)

	projectID, owner, err := s.service.Owner(s.ctx, mine[0].ID)
	s.Require().NoError(err)
	s.Equal(project, projectID)
	s.Equal(alice, owner)
}

func (s *DatasetServiceSuite) auditActions(userID id.UserID) []string {
	events, err := s.audits.ListByUser(context.Background(), userID)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *DatasetServiceSuite) TestAccessIsAudited() {
	d := s.upload(s.ctx, csvPayload)
	_, err := s.service.Load(s.ctx, d.ID)
	s.Require().NoError(err)
	_, err = s.service.Load(requestcontext.WithUserID(context.Background(), bob), d.ID)
	s.Require().Error(err)
	legacy := s.saveLegacy(alice, csvPayload)
	_, err = s.service.Load(s.ctx, legacy.ID)
	s.Require().NoError(err)

	s.Equal([]string{
		string(audit.EventDatasetUploaded),
		string(audit.EventDatasetDecrypted),
		string(audit.EventDatasetLegacyRead),
	}, s.auditActions(alice))
	s.Equal([]string{string(audit.EventDatasetAccessDenied)}, s.auditActions(bob))
}

type brokenAuditor struct{}

func (brokenAuditor) Emit(context.Context, audit.Event) error { return errors.New("audit store down") }

func (s *DatasetServiceSuite) TestUploadFailsWhenAuditFails() {
	svc := New(s.store, s.blobs, s.projects, s.keys, WithAuditor(brokenAuditor{}))
	_, err := svc.Upload(s.ctx, UploadRequest{ProjectID: project, Data: csvPayload})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	list, err := s.service.List(s.ctx, project)
	s.Require().NoError(err)
	s.Empty(list, "nothing is stored when the upload cannot be audited")
}

// saveLegacy stores a record the way datasets were kept before encryption.
func (s *DatasetServiceSuite) saveLegacy(userID id.UserID, data []byte) *models.Dataset {
	dsID := id.NewDatasetID()
	d, err := models.NewDataset(dsID, project, userID, "legacy.csv", crypto.FormatPlain,
		models.BlobKey(project, userID, dsID), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	d.SizeBytes = int64(len(data))
	s.Require().NoError(s.blobs.Put(s.ctx, d.BlobKey, data))
	s.Require().NoError(s.store.Save(s.ctx, d))
	return d
}

func TestCleanFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "dataset.csv"},
		{"  data.csv ", "data.csv"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\x.tsv`, "x.tsv"},
		{strings.Repeat("a", 300), strings.Repeat("a", 255)},
	}
	for _, tc := range cases {
		if got := cleanFilename(tc.in); got != tc.want {
			t.Errorf("cleanFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsText(t *testing.T) {
	for _, data := range [][]byte{csvPayload, []byte("a\tb\n1\t2\n"), []byte("\xef\xbb\xbfx,y\n1,2\n")} {
		if !isText(data) {
			t.Errorf("expected %q to sniff as text", data)
		}
	}
	if isText([]byte("PK\x03\x04\x14\x00\x06\x00")) {
		t.Error("zip archive sniffed as text")
	}
}
