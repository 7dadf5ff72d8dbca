package domain

import "time"

// Organization is the tenant boundary. Events and offers are owned by
// their org and never cross it.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Client is an end customer reachable by phone.
type Client struct {
	ID        string
	OrgID     string
	Name      string
	E164      string
	CreatedAt time.Time
}

// Sitter is a service provider addressable by SMS commands.
type Sitter struct {
	ID        string
	OrgID     string
	Name      string
	E164      string
	Active    bool
	CreatedAt time.Time
}

// SubjectType identifies the kind of authenticated principal.
type SubjectType string

const (
	SubjectTypeOperator SubjectType = "operator"
	SubjectTypeSitter   SubjectType = "sitter"
)

// Operator is a dashboard user allowed on the administrative endpoints.
type Operator struct {
	ID           string
	OrgID        string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
