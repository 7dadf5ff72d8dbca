package domain

import "time"

// RoutingTarget identifies where a message should be delivered.
type RoutingTarget string

const (
	TargetOwnerInbox RoutingTarget = "owner_inbox"
	TargetSitter     RoutingTarget = "sitter"
	TargetClient     RoutingTarget = "client"
)

// RoutingOverride is a manually inserted directive that takes precedence
// over rule evaluation while active. EndsAt == nil means the override holds
// until removed.
type RoutingOverride struct {
	ID        string
	OrgID     string
	ThreadID  string
	Target    RoutingTarget
	TargetID  *string
	StartsAt  time.Time
	EndsAt    *time.Time
	Reason    string
	RemovedAt *time.Time
	CreatedAt time.Time
}

// ActiveAt reports whether the override applies at t. The bounds are
// half-open like assignment windows: t == endsAt is already outside.
func (o RoutingOverride) ActiveAt(t time.Time) bool {
	if o.RemovedAt != nil {
		return false
	}
	if o.StartsAt.After(t) {
		return false
	}
	return o.EndsAt == nil || o.EndsAt.After(t)
}

// TraceStep records one rule evaluation inside a routing decision.
type TraceStep struct {
	Step        int    `json:"step"`
	Rule        string `json:"rule"`
	Condition   string `json:"condition"`
	Result      bool   `json:"result"`
	Explanation string `json:"explanation"`
	Override    bool   `json:"override,omitempty"`
}

// RoutingDecision is the output of the routing engine: the delivery target
// plus the full evaluation trace that explains it. EvaluatedAt is the
// evaluation input timestamp, not wall-clock time, so identical inputs
// yield identical decisions.
type RoutingDecision struct {
	Target         RoutingTarget `json:"target"`
	TargetID       *string       `json:"target_id,omitempty"`
	Reason         string        `json:"reason"`
	RulesetVersion string        `json:"ruleset_version"`
	EvaluatedAt    time.Time     `json:"evaluated_at"`
	Trace          []TraceStep   `json:"trace"`
}
