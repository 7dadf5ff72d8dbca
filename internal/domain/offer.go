package domain

import "time"

// OfferStatus enumerates offer lifecycle states. Once a status leaves
// sent it is terminal.
type OfferStatus string

const (
	OfferStatusSent     OfferStatus = "sent"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusDeclined OfferStatus = "declined"
	OfferStatusExpired  OfferStatus = "expired"
)

// DeclineReason distinguishes an active refusal from a timeout.
type DeclineReason string

const (
	DeclineReasonDeclined DeclineReason = "declined"
	DeclineReasonExpired  DeclineReason = "expired"
)

// OfferEvent is a time-boxed invitation for a sitter to accept a booking.
type OfferEvent struct {
	ID            string
	OrgID         string
	SitterID      string
	BookingID     string
	Status        OfferStatus
	OfferedAt     time.Time
	ExpiresAt     time.Time
	AcceptedAt    *time.Time
	DeclinedAt    *time.Time
	DeclineReason *DeclineReason
	Excluded      bool
	CreatedAt     time.Time
}

// Terminal reports whether the offer has left the sent state.
func (o OfferEvent) Terminal() bool {
	return o.Status != OfferStatusSent
}

// ExpiredAt reports whether the offer deadline has passed at t.
func (o OfferEvent) ExpiredAt(t time.Time) bool {
	return o.ExpiresAt.Before(t)
}

// BookingStatus enumerates the booking states the engine touches.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking carries the subset of booking state the offer processor needs.
type Booking struct {
	ID        string
	OrgID     string
	ClientID  string
	SitterID  *string
	Service   string
	Status    BookingStatus
	StartAt   time.Time
	EndAt     time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
