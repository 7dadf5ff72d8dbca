package dto

import (
	"time"

	"github.com/snoutos/message-router/internal/domain"
)

// SendMessageRequest posts an outbound message onto a thread.
type SendMessageRequest struct {
	ToE164 string `json:"to_e164"`
	Body   string `json:"body"`
}

// ForceSendRequest re-sends a failed outbound event.
type ForceSendRequest struct {
	ToE164 string `json:"to_e164"`
}

// MessageEventResponse mirrors one event log entry.
type MessageEventResponse struct {
	ID                  string                  `json:"id"`
	ThreadID            string                  `json:"thread_id"`
	Direction           domain.MessageDirection `json:"direction"`
	ActorType           domain.ActorType        `json:"actor_type"`
	Body                string                  `json:"body"`
	ProviderMessageSid  *string                 `json:"provider_message_sid,omitempty"`
	DeliveryStatus      domain.DeliveryStatus   `json:"delivery_status"`
	ResponsibleSitterID *string                 `json:"responsible_sitter_id,omitempty"`
	SupersedesEventID   *string                 `json:"supersedes_event_id,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

// NewMessageEventResponse maps a message event.
func NewMessageEventResponse(e domain.MessageEvent) MessageEventResponse {
	return MessageEventResponse{
		ID:                  e.ID,
		ThreadID:            e.ThreadID,
		Direction:           e.Direction,
		ActorType:           e.ActorType,
		Body:                e.Body,
		ProviderMessageSid:  e.ProviderMessageSid,
		DeliveryStatus:      e.DeliveryStatus,
		ResponsibleSitterID: e.ResponsibleSitterID,
		SupersedesEventID:   e.SupersedesEventID,
		CreatedAt:           e.CreatedAt,
	}
}

// OfferActionRequest targets a sitter's addressable offer over HTTP,
// mirroring the SMS command path.
type OfferActionRequest struct {
	SitterID string `json:"sitter_id"`
}

// OfferOutcomeResponse reports what an accept/decline attempt did.
type OfferOutcomeResponse struct {
	OfferID         *string            `json:"offer_id,omitempty"`
	Status          domain.OfferStatus `json:"status,omitempty"`
	Changed         bool               `json:"changed"`
	ResponseSeconds *float64           `json:"response_seconds,omitempty"`
	Message         string             `json:"message"`
}

// MetricsResponse mirrors a sitter's rolling window. Rates are null when
// the window held no offers.
type MetricsResponse struct {
	SitterID              string     `json:"sitter_id"`
	WindowStart           time.Time  `json:"window_start"`
	WindowEnd             time.Time  `json:"window_end"`
	WindowType            string     `json:"window_type"`
	AvgResponseSeconds    *float64   `json:"avg_response_seconds"`
	MedianResponseSeconds *float64   `json:"median_response_seconds"`
	OfferAcceptRate       *float64   `json:"offer_accept_rate"`
	OfferDeclineRate      *float64   `json:"offer_decline_rate"`
	OfferExpireRate       *float64   `json:"offer_expire_rate"`
	LastOfferRespondedAt  *time.Time `json:"last_offer_responded_at,omitempty"`
}

// NewMetricsResponse maps a stored metrics window.
func NewMetricsResponse(w domain.SitterMetricsWindow) MetricsResponse {
	return MetricsResponse{
		SitterID:              w.SitterID,
		WindowStart:           w.WindowStart,
		WindowEnd:             w.WindowEnd,
		WindowType:            w.WindowType,
		AvgResponseSeconds:    w.AvgResponseSeconds,
		MedianResponseSeconds: w.MedianResponseSeconds,
		OfferAcceptRate:       w.OfferAcceptRate,
		OfferDeclineRate:      w.OfferDeclineRate,
		OfferExpireRate:       w.OfferExpireRate,
		LastOfferRespondedAt:  w.LastOfferRespondedAt,
	}
}
