package events

import (
	"time"

	"github.com/snoutos/message-router/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventInboundReceived  EventType = "message_inbound_received"
	EventOutboundSent     EventType = "message_outbound_sent"
	EventRoutingEvaluated EventType = "routing_evaluated"
	EventOfferAccepted    EventType = "offer_accepted"
	EventOfferDeclined    EventType = "offer_declined"
	EventOfferExpired     EventType = "offer_expired"
	EventWindowChanged    EventType = "assignment_window_changed"
	EventConflictResolved EventType = "assignment_conflict_resolved"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OrgID     string      `json:"org_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// InboundReceivedPayload payload.
type InboundReceivedPayload struct {
	MessageEventID string               `json:"message_event_id"`
	ThreadID       string               `json:"thread_id"`
	MessageSid     string               `json:"message_sid"`
	Target         domain.RoutingTarget `json:"target"`
	TargetID       *string              `json:"target_id,omitempty"`
}

// OutboundSentPayload payload.
type OutboundSentPayload struct {
	MessageEventID string  `json:"message_event_id"`
	ThreadID       string  `json:"thread_id"`
	ToE164         string  `json:"to_e164"`
	ProviderSid    *string `json:"provider_sid,omitempty"`
}

// RoutingEvaluatedPayload payload.
type RoutingEvaluatedPayload struct {
	MessageEventID string               `json:"message_event_id"`
	Target         domain.RoutingTarget `json:"target"`
	Reason         string               `json:"reason"`
}

// OfferRespondedPayload payload for accept/decline/expire outcomes.
type OfferRespondedPayload struct {
	OfferID         string                `json:"offer_id"`
	BookingID       *string               `json:"booking_id,omitempty"`
	SitterID        string                `json:"sitter_id"`
	Status          domain.OfferStatus    `json:"status"`
	DeclineReason   *domain.DeclineReason `json:"decline_reason,omitempty"`
	ResponseSeconds *float64              `json:"response_seconds,omitempty"`
}

// WindowChangedPayload payload for window create/update/delete.
type WindowChangedPayload struct {
	WindowID  string `json:"window_id"`
	ThreadID  string `json:"thread_id"`
	SitterID  string `json:"sitter_id"`
	Change    string `json:"change"`
	WasActive bool   `json:"was_active,omitempty"`
}

// ConflictResolvedPayload payload.
type ConflictResolvedPayload struct {
	ConflictID string                  `json:"conflict_id"`
	ThreadID   string                  `json:"thread_id"`
	Strategy   domain.ConflictStrategy `json:"strategy"`
	DeletedIDs []string                `json:"deleted_ids,omitempty"`
}
