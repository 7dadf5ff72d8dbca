package domain

import "time"

// NumberClass enumerates the provisioning classes for a message number.
type NumberClass string

const (
	NumberClassFrontDesk NumberClass = "front_desk"
	NumberClassSitter    NumberClass = "sitter"
	NumberClassPool      NumberClass = "pool"
)

// NumberStatus represents lifecycle states for a provisioned number.
type NumberStatus string

const (
	NumberStatusActive      NumberStatus = "active"
	NumberStatusQuarantined NumberStatus = "quarantined"
	NumberStatusInactive    NumberStatus = "inactive"
)

// MessageNumber is a provisioned phone number owned by an organization.
// A sitter-class number carries at most one assigned sitter at a time.
type MessageNumber struct {
	ID               string
	OrgID            string
	E164             string
	Class            NumberClass
	AssignedSitterID *string
	Status           NumberStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
