package dto

import (
	"time"

	"github.com/snoutos/message-router/internal/domain"
)

// SimulateRequest asks for a dry routing evaluation. At defaults to the
// current time when omitted.
type SimulateRequest struct {
	ThreadID string     `json:"thread_id"`
	At       *time.Time `json:"at,omitempty"`
}

// RuleResponse describes one entry of the routing rule table.
type RuleResponse struct {
	Priority  int    `json:"priority"`
	Name      string `json:"name"`
	Condition string `json:"condition"`
}

// OverrideCreateRequest creates a manual routing directive. EndsAt nil
// means indefinite until removed.
type OverrideCreateRequest struct {
	Target   domain.RoutingTarget `json:"target"`
	TargetID *string              `json:"target_id,omitempty"`
	StartsAt time.Time            `json:"starts_at"`
	EndsAt   *time.Time           `json:"ends_at,omitempty"`
	Reason   string               `json:"reason"`
}

// OverrideResponse mirrors a stored override.
type OverrideResponse struct {
	ID        string               `json:"id"`
	ThreadID  string               `json:"thread_id"`
	Target    domain.RoutingTarget `json:"target"`
	TargetID  *string              `json:"target_id,omitempty"`
	StartsAt  time.Time            `json:"starts_at"`
	EndsAt    *time.Time           `json:"ends_at,omitempty"`
	Reason    string               `json:"reason"`
	RemovedAt *time.Time           `json:"removed_at,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewOverrideResponse maps the domain override.
func NewOverrideResponse(o domain.RoutingOverride) OverrideResponse {
	return OverrideResponse{
		ID:        o.ID,
		ThreadID:  o.ThreadID,
		Target:    o.Target,
		TargetID:  o.TargetID,
		StartsAt:  o.StartsAt,
		EndsAt:    o.EndsAt,
		Reason:    o.Reason,
		RemovedAt: o.RemovedAt,
		CreatedAt: o.CreatedAt,
	}
}
