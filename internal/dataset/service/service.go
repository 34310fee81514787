// Package service stores and reads back user datasets. Every payload is
// encrypted under a key derived from the owner's project code and user id
// before it reaches the blob store.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"fedlearn/internal/crypto"
	"fedlearn/internal/dataset/metrics"
	"fedlearn/internal/dataset/models"
	"fedlearn/internal/table"
	id "fedlearn/pkg/domain"
	dErrors "fedlearn/pkg/domain-errors"
	"fedlearn/pkg/platform/audit"
	"fedlearn/pkg/platform/sentinel"
	"fedlearn/pkg/requestcontext"
)

const defaultMaxUploadBytes = 16 << 20

type DatasetStore interface {
	Save(ctx context.Context, d *models.Dataset) error
	FindByID(ctx context.Context, datasetID id.DatasetID) (*models.Dataset, error)
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]*models.Dataset, error)
}

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ProjectDirectory resolves the code used to derive a project's keys and
// who is enrolled in a project.
type ProjectDirectory interface {
	Code(ctx context.Context, projectID id.ProjectID) (string, error)
	Member(ctx context.Context, projectID id.ProjectID, userID id.UserID) (bool, error)
}

// Auditor records dataset access. Compliance events must fail the caller
// when they cannot be written.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type noopAuditor struct{}

func (noopAuditor) Emit(context.Context, audit.Event) error { return nil }

// Service owns dataset upload, decryption and encryption reporting.
type Service struct {
	datasets DatasetStore
	blobs    BlobStore
	projects ProjectDirectory
	keys     *crypto.KeyDeriver
	codec    *crypto.Codec
	maxBytes int64
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  Auditor
	now      func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditor(a Auditor) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

func WithCodec(c *crypto.Codec) Option {
	return func(s *Service) {
		if c != nil {
			s.codec = c
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service.
func New(datasets DatasetStore, blobs BlobStore, projects ProjectDirectory, keys *crypto.KeyDeriver, opts ...Option) *Service {
	s := &Service{
		datasets: datasets,
		blobs:    blobs,
		projects: projects,
		keys:     keys,
		codec:    crypto.NewCodec(),
		maxBytes: defaultMaxUploadBytes,
		logger:   slog.Default(),
		auditor:  noopAuditor{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxUploadBytes is the largest payload Upload accepts.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxBytes
}

// UploadRequest carries one raw upload for the authenticated caller.
type UploadRequest struct {
	ProjectID id.ProjectID
	Filename  string
	Data      []byte
}

// Upload validates the payload as a delimited text table, encrypts it under
// the caller's key and stores it. The plaintext never reaches the blob store.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Dataset, error) {
	userID := requestcontext.UserID(ctx)
	if userID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	d, err := s.upload(ctx, userID, req)
	if err != nil {
		s.metrics.IncrementUpload(string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.IncrementUpload("stored")
	s.metrics.ObserveUploadBytes(len(req.Data))
	return d, nil
}

func (s *Service) upload(ctx context.Context, userID id.UserID, req UploadRequest) (*models.Dataset, error) {
	if len(req.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "dataset is empty")
	}
	if int64(len(req.Data)) > s.maxBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "dataset exceeds the upload size limit")
	}
	if !isText(req.Data) {
		return nil, dErrors.New(dErrors.CodeValidation, "dataset must be delimited text such as CSV")
	}
	t, err := table.Decode(bytes.NewReader(req.Data))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "dataset is not a readable table")
	}
	if err := s.requireMember(ctx, req.ProjectID, userID); err != nil {
		return nil, err
	}

	key, err := s.deriveKey(ctx, req.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	blob, err := s.codec.Encrypt(key, req.Data)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt dataset")
	}

	datasetID := id.NewDatasetID()
	d, err := models.NewDataset(datasetID, req.ProjectID, userID, cleanFilename(req.Filename),
		blob.Format, models.BlobKey(req.ProjectID, userID, datasetID), s.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create dataset")
	}
	d.SizeBytes = int64(len(req.Data))
	d.RowCount = t.Len()
	d.Columns = t.Columns()
	d.Checksum = checksum(req.Data)

	if err := s.record(ctx, audit.EventDatasetUploaded, d, ""); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record dataset upload")
	}
	if err := s.blobs.Put(ctx, d.BlobKey, blob.Payload()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store dataset")
	}
	if err := s.datasets.Save(ctx, d); err != nil {
		s.discardBlob(ctx, d)
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "dataset already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save dataset")
	}

	s.logger.InfoContext(ctx, "dataset uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"dataset_id", d.ID.String(),
		"project_id", d.ProjectID.String(),
		"rows", d.RowCount,
		"columns", len(d.Columns),
		"format", string(d.Format),
	)
	return d, nil
}

// Load returns the caller's decrypted dataset. Records tagged as legacy
// plaintext are read as stored; encrypted records never fall back to
// plaintext when decryption fails.
func (s *Service) Load(ctx context.Context, datasetID id.DatasetID) (*table.Table, error) {
	d, err := s.findOwned(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	payload, err := s.blobs.Get(ctx, d.BlobKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInternal, "dataset payload is missing")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read dataset")
	}

	raw, err := s.open(ctx, d, payload)
	if err != nil {
		return nil, err
	}
	t, err := table.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnprocessable, "stored dataset is not a readable table")
	}
	return t, nil
}

func (s *Service) open(ctx context.Context, d *models.Dataset, payload []byte) ([]byte, error) {
	if !d.Encrypted() {
		s.metrics.IncrementLegacyPlainRead()
		s.logger.WarnContext(ctx, "reading legacy plaintext dataset",
			"dataset_id", d.ID.String(),
			"project_id", d.ProjectID.String(),
			"format", string(d.Format),
		)
		_ = s.record(ctx, audit.EventDatasetLegacyRead, d, string(d.Format))
		return payload, nil
	}

	key, err := s.deriveKey(ctx, d.ProjectID, d.UserID)
	if err != nil {
		return nil, err
	}
	blob, err := crypto.ParseBlob(d.Format, payload)
	if err == nil {
		var raw []byte
		if raw, err = s.codec.Decrypt(key, blob); err == nil {
			if err := s.record(ctx, audit.EventDatasetDecrypted, d, ""); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record dataset access")
			}
			return raw, nil
		}
	}
	s.metrics.IncrementDecryptionFailure()
	s.logger.ErrorContext(ctx, "dataset decryption failed",
		"dataset_id", d.ID.String(),
		"error", err,
	)
	_ = s.record(ctx, audit.EventDatasetDecryptFailed, d, err.Error())
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "dataset could not be decrypted")
}

// Owner returns the project and user a dataset belongs to.
func (s *Service) Owner(ctx context.Context, datasetID id.DatasetID) (id.ProjectID, id.UserID, error) {
	d, err := s.find(ctx, datasetID)
	if err != nil {
		return 0, 0, err
	}
	return d.ProjectID, d.UserID, nil
}

// List returns the caller's datasets in a project, newest first.
func (s *Service) List(ctx context.Context, projectID id.ProjectID) ([]*models.Dataset, error) {
	userID := requestcontext.UserID(ctx)
	if userID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	all, err := s.datasets.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list datasets")
	}
	out := make([]*models.Dataset, 0, len(all))
	for _, d := range all {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

// CountByUser returns how many datasets each participant of a project has.
func (s *Service) CountByUser(ctx context.Context, projectID id.ProjectID) (map[id.UserID]int, error) {
	all, err := s.datasets.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list datasets")
	}
	out := make(map[id.UserID]int)
	for _, d := range all {
		out[d.UserID]++
	}
	return out, nil
}

// EncryptionStatus reports how a project's datasets are stored, with the
// caller's key fingerprint for verification.
func (s *Service) EncryptionStatus(ctx context.Context, projectID id.ProjectID) (*models.EncryptionStatus, error) {
	userID := requestcontext.UserID(ctx)
	if userID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := s.requireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}
	key, err := s.deriveKey(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.datasets.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list datasets")
	}

	encrypted := 0
	for _, d := range all {
		if d.Encrypted() {
			encrypted++
		}
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		UserID:    userID,
		ProjectID: projectID,
		Subject:   projectID.String(),
		Action:    string(audit.EventEncryptionStatusViewed),
	})
	return &models.EncryptionStatus{
		ProjectID:      projectID,
		Algorithm:      crypto.Algorithm,
		KeyDerivation:  s.keys.Description(),
		EncryptedCount: encrypted,
		TotalCount:     len(all),
		EncryptionRate: models.Rate(encrypted, len(all)),
		KeyFingerprint: s.keys.Fingerprint(key),
		Limitations:    models.KeyConfidentialityNote,
	}, nil
}

func (s *Service) find(ctx context.Context, datasetID id.DatasetID) (*models.Dataset, error) {
	d, err := s.datasets.FindByID(ctx, datasetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "dataset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dataset")
	}
	return d, nil
}

func (s *Service) findOwned(ctx context.Context, datasetID id.DatasetID) (*models.Dataset, error) {
	userID := requestcontext.UserID(ctx)
	if userID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	d, err := s.find(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		_ = s.auditor.Emit(ctx, audit.Event{
			UserID:    userID,
			ProjectID: d.ProjectID,
			Subject:   d.ID.String(),
			Action:    string(audit.EventDatasetAccessDenied),
			Decision:  "denied",
		})
		return nil, dErrors.New(dErrors.CodeForbidden, "dataset belongs to another user")
	}
	return d, nil
}

// AuthorizeProject fails with CodeForbidden unless the caller is enrolled
// in projectID.
func (s *Service) AuthorizeProject(ctx context.Context, projectID id.ProjectID) error {
	userID := requestcontext.UserID(ctx)
	if userID == 0 {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.requireMember(ctx, projectID, userID)
}

func (s *Service) requireMember(ctx context.Context, projectID id.ProjectID, userID id.UserID) error {
	ok, err := s.projects.Member(ctx, projectID, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve project membership")
	}
	if ok {
		return nil
	}
	s.logger.WarnContext(ctx, "project access denied",
		"request_id", requestcontext.RequestID(ctx),
		"project_id", projectID.String(),
		"user_id", userID.String(),
	)
	_ = s.auditor.Emit(ctx, audit.Event{
		UserID:    userID,
		ProjectID: projectID,
		Subject:   projectID.String(),
		Action:    string(audit.EventDatasetAccessDenied),
		Decision:  "denied",
		Reason:    "not a project member",
	})
	return dErrors.New(dErrors.CodeForbidden, "not a member of this project")
}

// discardBlob removes a payload whose record could not be saved.
func (s *Service) discardBlob(ctx context.Context, d *models.Dataset) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), d.BlobKey); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to remove orphaned dataset payload",
			"dataset_id", d.ID.String(),
			"blob_key", d.BlobKey,
			"error", err,
		)
	}
}

// record audits an action on d by its owner. Only compliance events can
// return an error.
func (s *Service) record(ctx context.Context, action audit.AuditEvent, d *models.Dataset, reason string) error {
	return s.auditor.Emit(ctx, audit.Event{
		UserID:    d.UserID,
		ProjectID: d.ProjectID,
		Subject:   d.ID.String(),
		Action:    string(action),
		Reason:    reason,
	})
}

func (s *Service) deriveKey(ctx context.Context, projectID id.ProjectID, userID id.UserID) ([]byte, error) {
	code, err := s.projects.Code(ctx, projectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve project")
	}
	key, err := s.keys.Derive(code, int64(userID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive key")
	}
	return key, nil
}

// isText accepts any payload sniffed as text/plain or a subtype of it.
func isText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// cleanFilename keeps the base name only.
func cleanFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "dataset.csv"
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
