package dto

import (
	"time"

	"github.com/snoutos/message-router/internal/domain"
)

// WindowRequest creates or replaces an assignment window.
type WindowRequest struct {
	SitterID   string    `json:"sitter_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	BookingRef *string   `json:"booking_ref,omitempty"`
}

// WindowResponse mirrors a stored window plus its derived status.
type WindowResponse struct {
	ID         string              `json:"id"`
	ThreadID   string              `json:"thread_id"`
	SitterID   string              `json:"sitter_id"`
	StartsAt   time.Time           `json:"starts_at"`
	EndsAt     time.Time           `json:"ends_at"`
	BookingRef *string             `json:"booking_ref,omitempty"`
	Status     domain.WindowStatus `json:"status"`
}

// NewWindowResponse maps a window, deriving status at now.
func NewWindowResponse(w domain.AssignmentWindow, now time.Time) WindowResponse {
	return WindowResponse{
		ID:         w.ID,
		ThreadID:   w.ThreadID,
		SitterID:   w.SitterID,
		StartsAt:   w.StartsAt,
		EndsAt:     w.EndsAt,
		BookingRef: w.BookingRef,
		Status:     w.StatusAt(now),
	}
}

// ConflictResponse reports one detected overlap.
type ConflictResponse struct {
	ID           string         `json:"id"`
	WindowA      WindowResponse `json:"window_a"`
	WindowB      WindowResponse `json:"window_b"`
	OverlapStart time.Time      `json:"overlap_start"`
	OverlapEnd   time.Time      `json:"overlap_end"`
}

// NewConflictResponse maps a detected conflict.
func NewConflictResponse(c domain.Conflict, now time.Time) ConflictResponse {
	return ConflictResponse{
		ID:           c.ID,
		WindowA:      NewWindowResponse(c.WindowA, now),
		WindowB:      NewWindowResponse(c.WindowB, now),
		OverlapStart: c.OverlapStart,
		OverlapEnd:   c.OverlapEnd,
	}
}

// ResolveConflictRequest applies a strategy to a detected conflict.
type ResolveConflictRequest struct {
	ConflictID string                  `json:"conflict_id"`
	Strategy   domain.ConflictStrategy `json:"strategy"`
}
