package domain

import "time"

// MessageDirection indicates inbound or outbound flow.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// ActorType indicates who authored a message event.
type ActorType string

const (
	ActorClient ActorType = "client"
	ActorSitter ActorType = "sitter"
	ActorOwner  ActorType = "owner"
	ActorSystem ActorType = "system"
)

// DeliveryStatus tracks carrier-side delivery state of a message event.
type DeliveryStatus string

const (
	DeliveryReceived DeliveryStatus = "received"
	DeliveryQueued   DeliveryStatus = "queued"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryFailed   DeliveryStatus = "failed"
)

// MessageEvent is an immutable, append-only record of one inbound or
// outbound message. ResponsibleSitterID is snapshotted at write time and
// never recomputed. ProviderMessageSid is unique per org and serves as the
// webhook dedup key.
type MessageEvent struct {
	ID                   string
	OrgID                string
	ThreadID             string
	Direction            MessageDirection
	ActorType            ActorType
	Body                 string
	ProviderMessageSid   *string
	DeliveryStatus       DeliveryStatus
	ResponsibleSitterID  *string
	SupersedesEventID    *string
	CreatedAt            time.Time
}
