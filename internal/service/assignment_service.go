package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/pkg/util"
)

// WindowInput is the caller-supplied window shape for create/update.
type WindowInput struct {
	ThreadID   string
	SitterID   string
	StartsAt   time.Time
	EndsAt     time.Time
	BookingRef *string
}

// DeleteResult reports whether the deleted window covered the deletion
// instant, so callers can warn that live traffic just rerouted.
type DeleteResult struct {
	WasActive bool
}

// AssignmentService owns assignment windows and their overlap conflicts.
// Conflicts are recomputed on demand, never stored.
type AssignmentService struct {
	windows    repository.WindowRepository
	threads    repository.ThreadRepository
	sitters    repository.SitterRepository
	audit      repository.AuditRepository
	tx         repository.TxRunner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles collaborators for the assignment service.
type AssignmentDependencies struct {
	WindowRepo repository.WindowRepository
	ThreadRepo repository.ThreadRepository
	SitterRepo repository.SitterRepository
	AuditRepo  repository.AuditRepository
	TxRunner   repository.TxRunner
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		windows:    deps.WindowRepo,
		threads:    deps.ThreadRepo,
		sitters:    deps.SitterRepo,
		audit:      deps.AuditRepo,
		tx:         deps.TxRunner,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// CreateWindow validates and persists a new window for a thread.
func (s *AssignmentService) CreateWindow(ctx context.Context, orgID string, input WindowInput) (*domain.AssignmentWindow, error) {
	if err := s.validateInput(ctx, orgID, input); err != nil {
		return nil, err
	}
	window := &domain.AssignmentWindow{
		OrgID:      orgID,
		ThreadID:   input.ThreadID,
		SitterID:   input.SitterID,
		StartsAt:   input.StartsAt,
		EndsAt:     input.EndsAt,
		BookingRef: input.BookingRef,
	}
	if err := s.windows.Create(ctx, window); err != nil {
		return nil, err
	}
	s.recordWindowChange(ctx, window, domain.AuditWindowCreated, "created", false)
	return window, nil
}

// UpdateWindow applies new bounds/sitter to an existing window.
func (s *AssignmentService) UpdateWindow(ctx context.Context, orgID, windowID string, input WindowInput) (*domain.AssignmentWindow, error) {
	window, err := s.windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, util.NewNotFound("assignment window", map[string]any{"id": windowID})
	}
	if window.OrgID != orgID {
		return nil, util.NewForbidden("window belongs to another organization")
	}
	input.ThreadID = window.ThreadID
	if err := s.validateInput(ctx, orgID, input); err != nil {
		return nil, err
	}
	window.SitterID = input.SitterID
	window.StartsAt = input.StartsAt
	window.EndsAt = input.EndsAt
	window.BookingRef = input.BookingRef
	if err := s.windows.Update(ctx, window); err != nil {
		return nil, err
	}
	s.recordWindowChange(ctx, window, domain.AuditWindowUpdated, "updated", false)
	return window, nil
}

// DeleteWindow removes a window and reports whether it was active at
// deletion time. Past events keep their routing snapshots; only future
// inbound traffic re-routes.
func (s *AssignmentService) DeleteWindow(ctx context.Context, orgID, windowID string) (*DeleteResult, error) {
	window, err := s.windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, util.NewNotFound("assignment window", map[string]any{"id": windowID})
	}
	if window.OrgID != orgID {
		return nil, util.NewForbidden("window belongs to another organization")
	}
	wasActive := window.ActiveAt(s.now())
	if err := s.windows.Delete(ctx, windowID); err != nil {
		return nil, err
	}
	s.recordWindowChange(ctx, window, domain.AuditWindowDeleted, "deleted", wasActive)
	return &DeleteResult{WasActive: wasActive}, nil
}

// ListWindows returns a thread's windows with derived status at now.
func (s *AssignmentService) ListWindows(ctx context.Context, threadID string) ([]domain.AssignmentWindow, error) {
	return s.windows.ListByThread(ctx, threadID)
}

// DetectConflicts reports every pairwise overlap among one thread's
// windows. Half-open intervals: touching endpoints do not conflict.
// Pairwise scan is fine here, window counts per thread stay small.
func (s *AssignmentService) DetectConflicts(ctx context.Context, threadID string) ([]domain.Conflict, error) {
	windows, err := s.windows.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	conflicts := make([]domain.Conflict, 0)
	for i := 0; i < len(windows); i++ {
		for j := i + 1; j < len(windows); j++ {
			a, b := windows[i], windows[j]
			if !overlaps(a, b) {
				continue
			}
			conflicts = append(conflicts, domain.Conflict{
				ID:           conflictID(a.ID, b.ID),
				WindowA:      a,
				WindowB:      b,
				OverlapStart: laterOf(a.StartsAt, b.StartsAt),
				OverlapEnd:   earlierOf(a.EndsAt, b.EndsAt),
			})
		}
	}
	return conflicts, nil
}

// ResolveConflict applies a strategy to one detected conflict. keepA and
// keepB delete the losing window. split truncates the earlier window at
// the overlap start so the pair becomes adjacent; a window truncated to
// nothing is deleted instead of kept degenerate.
func (s *AssignmentService) ResolveConflict(ctx context.Context, orgID, threadID, id string, strategy domain.ConflictStrategy) error {
	conflicts, err := s.DetectConflicts(ctx, threadID)
	if err != nil {
		return err
	}
	var conflict *domain.Conflict
	for i := range conflicts {
		if conflicts[i].ID == id {
			conflict = &conflicts[i]
			break
		}
	}
	if conflict == nil {
		return util.NewNotFound("conflict", map[string]any{"id": id})
	}
	if conflict.WindowA.OrgID != orgID {
		return util.NewForbidden("conflict belongs to another organization")
	}

	var deletedIDs []string
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		switch strategy {
		case domain.StrategyKeepA:
			deletedIDs = append(deletedIDs, conflict.WindowB.ID)
			return s.windows.Delete(txCtx, conflict.WindowB.ID)
		case domain.StrategyKeepB:
			deletedIDs = append(deletedIDs, conflict.WindowA.ID)
			return s.windows.Delete(txCtx, conflict.WindowA.ID)
		case domain.StrategySplit:
			del, splitErr := s.split(txCtx, conflict)
			deletedIDs = del
			return splitErr
		default:
			return util.NewValidationError("unknown resolution strategy", map[string]any{"strategy": strategy})
		}
	})
	if err != nil {
		return err
	}

	s.recordConflictResolution(ctx, orgID, threadID, *conflict, strategy, deletedIDs)
	return nil
}

// split truncates the earlier-starting window so it ends where the later
// one begins, leaving the pair adjacent on the half-open boundary. The
// overlap start is the later window's own start, so only the earlier
// window moves. When the two starts coincide, truncation empties the
// earlier window and it is deleted instead of kept degenerate.
func (s *AssignmentService) split(ctx context.Context, conflict *domain.Conflict) ([]string, error) {
	first, second := conflict.WindowA, conflict.WindowB
	if second.StartsAt.Before(first.StartsAt) {
		first, second = second, first
	}

	var deleted []string
	first.EndsAt = conflict.OverlapStart
	if !first.EndsAt.After(first.StartsAt) {
		if err := s.windows.Delete(ctx, first.ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, first.ID)
	} else if err := s.windows.Update(ctx, &first); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (s *AssignmentService) validateInput(ctx context.Context, orgID string, input WindowInput) error {
	if !input.StartsAt.Before(input.EndsAt) {
		return util.NewValidationError("startsAt must be before endsAt", map[string]any{
			"starts_at": input.StartsAt,
			"ends_at":   input.EndsAt,
		})
	}
	if _, err := s.threads.GetByID(ctx, input.ThreadID); err != nil {
		return util.NewNotFound("thread", map[string]any{"id": input.ThreadID})
	}
	sitter, err := s.sitters.GetByID(ctx, orgID, input.SitterID)
	if err != nil {
		return err
	}
	if sitter == nil {
		return util.NewNotFound("sitter", map[string]any{"id": input.SitterID})
	}
	return nil
}

func (s *AssignmentService) recordWindowChange(ctx context.Context, window *domain.AssignmentWindow, eventType domain.AuditEventType, change string, wasActive bool) {
	windowID := window.ID
	entry := &domain.AuditEvent{
		OrgID:      window.OrgID,
		EventType:  eventType,
		ActorType:  domain.ActorOwner,
		EntityType: "assignment_window",
		EntityID:   &windowID,
		Metadata: map[string]any{
			"thread_id":  window.ThreadID,
			"sitter_id":  window.SitterID,
			"starts_at":  window.StartsAt,
			"ends_at":    window.EndsAt,
			"was_active": wasActive,
		},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("window audit append failed", zap.String("window_id", window.ID), zap.Error(err))
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventWindowChanged,
			OrgID:     window.OrgID,
			Actor:     events.Actor{Type: domain.ActorOwner},
			Timestamp: s.now(),
			Payload: events.WindowChangedPayload{
				WindowID:  window.ID,
				ThreadID:  window.ThreadID,
				SitterID:  window.SitterID,
				Change:    change,
				WasActive: wasActive,
			},
		})
	}
}

func (s *AssignmentService) recordConflictResolution(ctx context.Context, orgID, threadID string, conflict domain.Conflict, strategy domain.ConflictStrategy, deletedIDs []string) {
	id := conflict.ID
	entry := &domain.AuditEvent{
		OrgID:      orgID,
		EventType:  domain.AuditConflictResolved,
		ActorType:  domain.ActorOwner,
		EntityType: "conflict",
		EntityID:   &id,
		Metadata: map[string]any{
			"thread_id":     threadID,
			"strategy":      strategy,
			"window_a":      conflict.WindowA.ID,
			"window_b":      conflict.WindowB.ID,
			"overlap_start": conflict.OverlapStart,
			"overlap_end":   conflict.OverlapEnd,
			"deleted_ids":   deletedIDs,
		},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("conflict audit append failed", zap.String("conflict_id", conflict.ID), zap.Error(err))
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventConflictResolved,
			OrgID:     orgID,
			Actor:     events.Actor{Type: domain.ActorOwner},
			Timestamp: s.now(),
			Payload: events.ConflictResolvedPayload{
				ConflictID: conflict.ID,
				ThreadID:   threadID,
				Strategy:   strategy,
				DeletedIDs: deletedIDs,
			},
		})
	}
}

// overlaps applies the half-open interval rule: touching endpoints are not
// a conflict.
func overlaps(a, b domain.AssignmentWindow) bool {
	return a.StartsAt.Before(b.EndsAt) && b.StartsAt.Before(a.EndsAt)
}

// conflictID derives a stable identity from the window pair. Colon
// separator keeps the two UUIDs splittable.
func conflictID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
