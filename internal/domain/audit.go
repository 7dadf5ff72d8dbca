package domain

import "time"

// AuditEventType enumerates audit log entry kinds.
type AuditEventType string

const (
	AuditRoutingFailed      AuditEventType = "messaging.routing_failed"
	AuditInboundReceived    AuditEventType = "message.inbound_received"
	AuditDuplicateAbsorbed  AuditEventType = "message.duplicate_absorbed"
	AuditOutboundSent       AuditEventType = "message.outbound_sent"
	AuditForceSend          AuditEventType = "message.force_send"
	AuditOfferAccepted      AuditEventType = "offer.accepted"
	AuditOfferDeclined      AuditEventType = "offer.declined"
	AuditOfferExpired       AuditEventType = "offer.expired"
	AuditRoutingEvaluated   AuditEventType = "routing.evaluated"
	AuditOverrideCreated    AuditEventType = "routing.override_created"
	AuditOverrideRemoved    AuditEventType = "routing.override_removed"
	AuditWindowCreated      AuditEventType = "assignment.window_created"
	AuditWindowUpdated      AuditEventType = "assignment.window_updated"
	AuditWindowDeleted      AuditEventType = "assignment.window_deleted"
	AuditConflictResolved   AuditEventType = "assignment.conflict_resolved"
	AuditCalendarSyncFailed AuditEventType = "calendar.sync_failed"
)

// AuditEvent is an append-only operational log entry. Metadata is a free
// JSON blob; a remediation hint for operators lives under the
// "remediation" key when the event records a failure.
type AuditEvent struct {
	ID         string
	OrgID      string
	EventType  AuditEventType
	ActorType  ActorType
	ActorID    *string
	EntityType string
	EntityID   *string
	Metadata   map[string]any
	CreatedAt  time.Time
}
