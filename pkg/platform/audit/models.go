package audit

import (
	"context"
	"time"

	id "fedlearn/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers access to participant data. These events are
	// written synchronously and the operation fails if they cannot be.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring, such as
	// access violations and failed decryptions.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	ProjectID id.ProjectID
	// Subject is the dataset or run the action touched.
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventDatasetUploaded        AuditEvent = "dataset_uploaded"
	EventDatasetDecrypted       AuditEvent = "dataset_decrypted"
	EventDatasetLegacyRead      AuditEvent = "dataset_legacy_plaintext_read"
	EventDatasetDecryptFailed   AuditEvent = "dataset_decryption_failed"
	EventDatasetAccessDenied    AuditEvent = "dataset_access_denied"
	EventEncryptionStatusViewed AuditEvent = "encryption_status_viewed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDatasetUploaded:  CategoryCompliance,
	EventDatasetDecrypted: CategoryCompliance,

	EventDatasetLegacyRead:    CategorySecurity,
	EventDatasetDecryptFailed: CategorySecurity,
	EventDatasetAccessDenied:  CategorySecurity,

	EventEncryptionStatusViewed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
