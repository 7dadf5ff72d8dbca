package domain

import "time"

// WindowStatus is derived from the current time against window bounds; it
// is never stored.
type WindowStatus string

const (
	WindowStatusActive WindowStatus = "active"
	WindowStatusFuture WindowStatus = "future"
	WindowStatusPast   WindowStatus = "past"
)

// AssignmentWindow is a time interval during which a sitter is the routing
// target for a thread. Invariant: StartsAt < EndsAt.
type AssignmentWindow struct {
	ID         string
	OrgID      string
	ThreadID   string
	SitterID   string
	StartsAt   time.Time
	EndsAt     time.Time
	BookingRef *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StatusAt derives the window status relative to now.
func (w AssignmentWindow) StatusAt(now time.Time) WindowStatus {
	switch {
	case w.ActiveAt(now):
		return WindowStatusActive
	case w.StartsAt.After(now):
		return WindowStatusFuture
	default:
		return WindowStatusPast
	}
}

// ActiveAt reports whether the window covers t using half-open bounds,
// matching the overlap rule: [StartsAt, EndsAt).
func (w AssignmentWindow) ActiveAt(t time.Time) bool {
	return !w.StartsAt.After(t) && w.EndsAt.After(t)
}

// Conflict pairs two overlapping windows on the same thread, carrying the
// overlap interval [max(startA,startB), min(endA,endB)). Conflicts are
// computed, not persisted.
type Conflict struct {
	ID           string
	WindowA      AssignmentWindow
	WindowB      AssignmentWindow
	OverlapStart time.Time
	OverlapEnd   time.Time
}

// ConflictStrategy selects how a conflict is resolved.
type ConflictStrategy string

const (
	StrategyKeepA ConflictStrategy = "keepA"
	StrategyKeepB ConflictStrategy = "keepB"
	StrategySplit ConflictStrategy = "split"
)
