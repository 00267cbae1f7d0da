package audit

import (
	"time"

	id "spamgate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing per sink.
type EventCategory string

const (
	// CategoryCompliance covers events with lasting significance for an account.
	// Examples: user creation, settings changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to abuse monitoring and forensics.
	// Examples: auth failures, captcha rejections.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine events useful for operational visibility.
	// Examples: session creation, contact messages.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	// IP is anonymized before it reaches an event.
	IP        string
	Browser   string
	RequestID string
	ActorID   string
	Severity  Severity
}

type AuditEvent string

const (
	// Account events
	EventUserCreated    AuditEvent = "user_created"
	EventSessionCreated AuditEvent = "session_created"
	EventAuthFailed     AuditEvent = "auth_failed"

	// Gate events
	EventCaptchaRejected AuditEvent = "captcha_rejected"
	EventSettingsUpdated AuditEvent = "captcha_settings_updated"

	// Contact events
	EventContactReceived AuditEvent = "contact_received"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserCreated:     CategoryCompliance,
	EventSettingsUpdated: CategoryCompliance,

	EventAuthFailed:      CategorySecurity,
	EventCaptchaRejected: CategorySecurity,

	EventSessionCreated:  CategoryOperations,
	EventContactReceived: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
