package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/repository"
)

// RulesetVersion is stamped into every routing decision so historical
// traces stay interpretable after the rule table changes.
const RulesetVersion = "1.0.0"

// RoutingContext is the full input to one rule evaluation. Decisions are a
// pure function of this struct: same context, same decision.
type RoutingContext struct {
	Thread        *domain.Thread
	Override      *domain.RoutingOverride
	ActiveWindows []domain.AssignmentWindow
	AtTime        time.Time
}

// RoutingRule is one prioritized entry in the rule table. Apply returns
// nil when the rule does not match.
type RoutingRule struct {
	Name      string
	Condition string
	Apply     func(rc RoutingContext) *domain.RoutingDecision
}

// RoutingService evaluates the prioritized rule table for a thread and
// records the decision trace.
type RoutingService struct {
	threads    repository.ThreadRepository
	overrides  repository.OverrideRepository
	windows    repository.WindowRepository
	audit      repository.AuditRepository
	dispatcher events.Dispatcher
	rules      []RoutingRule
	logger     *zap.Logger
}

// RoutingDependencies bundles repositories for the routing service.
type RoutingDependencies struct {
	ThreadRepo   repository.ThreadRepository
	OverrideRepo repository.OverrideRepository
	WindowRepo   repository.WindowRepository
	AuditRepo    repository.AuditRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewRoutingService constructs the service with the default rule table.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	return &RoutingService{
		threads:    deps.ThreadRepo,
		overrides:  deps.OverrideRepo,
		windows:    deps.WindowRepo,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		rules:      defaultRules(),
		logger:     deps.Logger,
	}
}

// defaultRules returns the prioritized rule table. Order is the priority:
// the first matching rule decides the target.
func defaultRules() []RoutingRule {
	return []RoutingRule{
		{
			Name:      "manual_override",
			Condition: "an unremoved override covers atTime",
			Apply: func(rc RoutingContext) *domain.RoutingDecision {
				if rc.Override == nil || !rc.Override.ActiveAt(rc.AtTime) {
					return nil
				}
				return &domain.RoutingDecision{
					Target:   rc.Override.Target,
					TargetID: rc.Override.TargetID,
					Reason:   fmt.Sprintf("manual override: %s", rc.Override.Reason),
				}
			},
		},
		{
			Name:      "active_assignment_window",
			Condition: "a window covers [startsAt, endsAt) at atTime",
			Apply: func(rc RoutingContext) *domain.RoutingDecision {
				window := latestActiveWindow(rc.ActiveWindows, rc.AtTime)
				if window == nil {
					return nil
				}
				sitterID := window.SitterID
				return &domain.RoutingDecision{
					Target:   domain.TargetSitter,
					TargetID: &sitterID,
					Reason:   fmt.Sprintf("active assignment window %s", window.ID),
				}
			},
		},
		{
			Name:      "thread_assigned_sitter",
			Condition: "thread carries an assigned sitter",
			Apply: func(rc RoutingContext) *domain.RoutingDecision {
				if rc.Thread == nil || rc.Thread.AssignedSitterID == nil {
					return nil
				}
				return &domain.RoutingDecision{
					Target:   domain.TargetSitter,
					TargetID: rc.Thread.AssignedSitterID,
					Reason:   "thread assigned sitter",
				}
			},
		},
		{
			Name:      "fallback_owner_inbox",
			Condition: "always",
			Apply: func(rc RoutingContext) *domain.RoutingDecision {
				return &domain.RoutingDecision{
					Target: domain.TargetOwnerInbox,
					Reason: "no matching rule, fallback to owner inbox",
				}
			},
		},
	}
}

// latestActiveWindow picks, among windows covering t, the one that started
// most recently. A window created for a later booking wins over a
// long-running one it sits inside.
func latestActiveWindow(windows []domain.AssignmentWindow, t time.Time) *domain.AssignmentWindow {
	var best *domain.AssignmentWindow
	for i := range windows {
		w := &windows[i]
		if !w.ActiveAt(t) {
			continue
		}
		if best == nil || w.StartsAt.After(best.StartsAt) {
			best = w
		}
	}
	return best
}

// Rules exposes the rule table metadata for the admin listing endpoint.
func (s *RoutingService) Rules() []RoutingRule {
	return s.rules
}

// Evaluate walks the rule table in priority order and returns the first
// match plus the trace of every rule inspected up to and including it.
// EvaluatedAt echoes the input timestamp so the result is reproducible.
func (s *RoutingService) Evaluate(rc RoutingContext) domain.RoutingDecision {
	trace := make([]domain.TraceStep, 0, len(s.rules))
	for i, rule := range s.rules {
		decision := rule.Apply(rc)
		step := domain.TraceStep{
			Step:      i + 1,
			Rule:      rule.Name,
			Condition: rule.Condition,
			Result:    decision != nil,
			Override:  rule.Name == "manual_override" && decision != nil,
		}
		if decision == nil {
			step.Explanation = "rule did not match"
			trace = append(trace, step)
			continue
		}
		step.Explanation = decision.Reason
		trace = append(trace, step)

		decision.RulesetVersion = RulesetVersion
		decision.EvaluatedAt = rc.AtTime
		decision.Trace = trace
		return *decision
	}
	// Unreachable while the fallback rule is present; kept so a trimmed
	// rule table still routes somewhere.
	return domain.RoutingDecision{
		Target:         domain.TargetOwnerInbox,
		Reason:         "empty rule table",
		RulesetVersion: RulesetVersion,
		EvaluatedAt:    rc.AtTime,
		Trace:          trace,
	}
}

// EvaluateThread loads the live routing inputs for a thread and evaluates
// them at atTime.
func (s *RoutingService) EvaluateThread(ctx context.Context, thread *domain.Thread, atTime time.Time) (domain.RoutingDecision, error) {
	override, err := s.overrides.FindActive(ctx, thread.ID, atTime)
	if err != nil {
		return domain.RoutingDecision{}, err
	}
	windows, err := s.windows.ListActiveAt(ctx, thread.ID, atTime)
	if err != nil {
		return domain.RoutingDecision{}, err
	}
	return s.Evaluate(RoutingContext{
		Thread:        thread,
		Override:      override,
		ActiveWindows: windows,
		AtTime:        atTime,
	}), nil
}

// Simulate runs a dry evaluation for a thread at atTime. Nothing is
// persisted; the full trace goes back to the caller.
func (s *RoutingService) Simulate(ctx context.Context, threadID string, atTime time.Time) (domain.RoutingDecision, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return domain.RoutingDecision{}, err
	}
	return s.EvaluateThread(ctx, thread, atTime)
}

// RecordDecision appends the audit entry for a live routing evaluation.
// Audit failures are logged, not propagated: the message already routed.
func (s *RoutingService) RecordDecision(ctx context.Context, orgID string, messageEventID string, decision domain.RoutingDecision) {
	entry := &domain.AuditEvent{
		OrgID:      orgID,
		EventType:  domain.AuditRoutingEvaluated,
		ActorType:  domain.ActorSystem,
		EntityType: "message_event",
		EntityID:   &messageEventID,
		Metadata: map[string]any{
			"target":          decision.Target,
			"target_id":       decision.TargetID,
			"reason":          decision.Reason,
			"ruleset_version": decision.RulesetVersion,
			"evaluated_at":    decision.EvaluatedAt,
			"trace":           decision.Trace,
		},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("routing audit append failed",
			zap.String("message_event_id", messageEventID),
			zap.Error(err))
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventRoutingEvaluated,
			OrgID:     orgID,
			Actor:     events.Actor{Type: domain.ActorSystem},
			Timestamp: decision.EvaluatedAt,
			Payload: events.RoutingEvaluatedPayload{
				MessageEventID: messageEventID,
				Target:         decision.Target,
				Reason:         decision.Reason,
			},
		})
	}
}
