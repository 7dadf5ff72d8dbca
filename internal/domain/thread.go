package domain

import "time"

// ThreadScope differentiates conversation purposes within an org.
type ThreadScope string

const (
	ScopeClientBooking ThreadScope = "client_booking"
	ScopeClientGeneral ThreadScope = "client_general"
	ScopeInternal      ThreadScope = "internal"
)

// ThreadStatus enumerates lifecycle states for threads. Threads are never
// deleted, only closed or archived.
type ThreadStatus string

const (
	ThreadStatusOpen     ThreadStatus = "open"
	ThreadStatusClosed   ThreadStatus = "closed"
	ThreadStatusArchived ThreadStatus = "archived"
)

// Thread is a conversation scoped to an org, optionally to a client and/or
// an assigned sitter.
type Thread struct {
	ID               string
	OrgID            string
	ClientID         *string
	AssignedSitterID *string
	Scope            ThreadScope
	Status           ThreadStatus
	MaskedNumberE164 *string
	LastMessageAt    *time.Time
	LastInboundAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ParticipantRole identifies who a participant is within a thread.
type ParticipantRole string

const (
	RoleClient ParticipantRole = "client"
	RoleSitter ParticipantRole = "sitter"
	RoleOwner  ParticipantRole = "owner"
	RoleSystem ParticipantRole = "system"
)

// Participant binds a role to a thread with a real phone number.
// Immutable once created for a given (thread, role, number) triple.
type Participant struct {
	ID        string
	ThreadID  string
	Role      ParticipantRole
	E164      string
	CreatedAt time.Time
}
