package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
)

func newRoutingFixture(overrides *fakeOverrideRepo, windows *fakeWindowRepo) (*RoutingService, *fakeAuditRepo) {
	if overrides == nil {
		overrides = &fakeOverrideRepo{}
	}
	if windows == nil {
		windows = &fakeWindowRepo{}
	}
	audit := &fakeAuditRepo{}
	svc := NewRoutingService(RoutingDependencies{
		ThreadRepo:   &fakeThreadRepo{},
		OverrideRepo: overrides,
		WindowRepo:   windows,
		AuditRepo:    audit,
		Logger:       testLogger(),
	})
	return svc, audit
}

func TestEvaluateFallsBackToOwnerInbox(t *testing.T) {
	svc, _ := newRoutingFixture(nil, nil)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	decision := svc.Evaluate(RoutingContext{
		Thread: &domain.Thread{ID: "thread-1", OrgID: "org-1"},
		AtTime: at,
	})

	assert.Equal(t, domain.TargetOwnerInbox, decision.Target)
	assert.Nil(t, decision.TargetID)
	assert.Equal(t, RulesetVersion, decision.RulesetVersion)
	assert.Equal(t, at, decision.EvaluatedAt)
	// Every rule was inspected before the fallback matched.
	require.Len(t, decision.Trace, 4)
	for i, step := range decision.Trace {
		assert.Equal(t, i+1, step.Step)
		assert.Equal(t, i == len(decision.Trace)-1, step.Result)
	}
}

func TestEvaluateOverrideWinsAndIsMarked(t *testing.T) {
	svc, _ := newRoutingFixture(nil, nil)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sitterID := "sitter-9"

	decision := svc.Evaluate(RoutingContext{
		Thread: &domain.Thread{ID: "thread-1", AssignedSitterID: strPtr("sitter-1")},
		Override: &domain.RoutingOverride{
			ID:       "ovr-1",
			ThreadID: "thread-1",
			Target:   domain.TargetSitter,
			TargetID: &sitterID,
			StartsAt: at.Add(-time.Hour),
			Reason:   "sitter on vacation",
		},
		AtTime: at,
	})

	assert.Equal(t, domain.TargetSitter, decision.Target)
	require.NotNil(t, decision.TargetID)
	assert.Equal(t, sitterID, *decision.TargetID)
	// Evaluation stops at the first match, so the trace has one step and it
	// carries the override marker.
	require.Len(t, decision.Trace, 1)
	assert.True(t, decision.Trace[0].Override)
	assert.True(t, decision.Trace[0].Result)
	assert.Equal(t, "manual_override", decision.Trace[0].Rule)
}

func TestEvaluateActiveWindowBeatsThreadAssignment(t *testing.T) {
	svc, _ := newRoutingFixture(nil, nil)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	decision := svc.Evaluate(RoutingContext{
		Thread: &domain.Thread{ID: "thread-1", AssignedSitterID: strPtr("sitter-1")},
		ActiveWindows: []domain.AssignmentWindow{
			{ID: "win-1", SitterID: "sitter-2", StartsAt: at.Add(-2 * time.Hour), EndsAt: at.Add(time.Hour)},
		},
		AtTime: at,
	})

	assert.Equal(t, domain.TargetSitter, decision.Target)
	require.NotNil(t, decision.TargetID)
	assert.Equal(t, "sitter-2", *decision.TargetID)
	require.Len(t, decision.Trace, 2)
	assert.False(t, decision.Trace[0].Result)
	assert.True(t, decision.Trace[1].Result)
}

func TestEvaluateLatestStartingWindowWins(t *testing.T) {
	svc, _ := newRoutingFixture(nil, nil)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	decision := svc.Evaluate(RoutingContext{
		Thread: &domain.Thread{ID: "thread-1"},
		ActiveWindows: []domain.AssignmentWindow{
			{ID: "win-long", SitterID: "sitter-1", StartsAt: at.Add(-48 * time.Hour), EndsAt: at.Add(48 * time.Hour)},
			{ID: "win-recent", SitterID: "sitter-2", StartsAt: at.Add(-time.Hour), EndsAt: at.Add(time.Hour)},
		},
		AtTime: at,
	})

	require.NotNil(t, decision.TargetID)
	assert.Equal(t, "sitter-2", *decision.TargetID)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	svc, _ := newRoutingFixture(nil, nil)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rc := RoutingContext{
		Thread: &domain.Thread{ID: "thread-1", AssignedSitterID: strPtr("sitter-1")},
		ActiveWindows: []domain.AssignmentWindow{
			{ID: "win-1", SitterID: "sitter-2", StartsAt: at.Add(-time.Hour), EndsAt: at.Add(time.Hour)},
		},
		AtTime: at,
	}

	first, err := json.Marshal(svc.Evaluate(rc))
	require.NoError(t, err)
	second, err := json.Marshal(svc.Evaluate(rc))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluateThreadLoadsOverrideAndWindows(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	overrides := &fakeOverrideRepo{
		findActiveFunc: func(ctx context.Context, threadID string, ts time.Time) (*domain.RoutingOverride, error) {
			return &domain.RoutingOverride{
				ID:       "ovr-1",
				ThreadID: threadID,
				Target:   domain.TargetOwnerInbox,
				StartsAt: ts.Add(-time.Minute),
				Reason:   "escalated",
			}, nil
		},
	}
	svc, _ := newRoutingFixture(overrides, nil)

	decision, err := svc.EvaluateThread(context.Background(), &domain.Thread{ID: "thread-1"}, at)
	require.NoError(t, err)
	assert.Equal(t, domain.TargetOwnerInbox, decision.Target)
	assert.True(t, decision.Trace[0].Override)
}

func TestRecordDecisionWritesAudit(t *testing.T) {
	svc, audit := newRoutingFixture(nil, nil)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	decision := svc.Evaluate(RoutingContext{Thread: &domain.Thread{ID: "thread-1"}, AtTime: at})

	svc.RecordDecision(context.Background(), "org-1", "evt-1", decision)

	entries := audit.byType(domain.AuditRoutingEvaluated)
	require.Len(t, entries, 1)
	assert.Equal(t, "org-1", entries[0].OrgID)
	assert.Equal(t, RulesetVersion, entries[0].Metadata["ruleset_version"])
}

func TestRecordDecisionPublishesEvent(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	audit := &fakeAuditRepo{}
	svc := NewRoutingService(RoutingDependencies{
		ThreadRepo:   &fakeThreadRepo{},
		OverrideRepo: &fakeOverrideRepo{},
		WindowRepo:   &fakeWindowRepo{},
		AuditRepo:    audit,
		Dispatcher:   dispatcher,
		Logger:       testLogger(),
	})
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	decision := svc.Evaluate(RoutingContext{Thread: &domain.Thread{ID: "thread-1"}, AtTime: at})

	svc.RecordDecision(context.Background(), "org-1", "evt-1", decision)

	published := dispatcher.byType(events.EventRoutingEvaluated)
	require.Len(t, published, 1)
	assert.Equal(t, "org-1", published[0].OrgID)
	payload, ok := published[0].Payload.(events.RoutingEvaluatedPayload)
	require.True(t, ok)
	assert.Equal(t, "evt-1", payload.MessageEventID)
	assert.Equal(t, domain.TargetOwnerInbox, payload.Target)
}
