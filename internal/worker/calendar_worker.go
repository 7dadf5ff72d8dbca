package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/internal/service"
)

// CalendarWorker pushes assignment changes to the external calendar as a
// post-commit hook. Subscriptions run synchronously after Publish; a
// failed push is audited and logged, never propagated to the publisher.
type CalendarWorker struct {
	calendar *service.CalendarService
	audit    repository.AuditRepository
	logger   *zap.Logger
}

// NewCalendarWorker constructs the worker.
func NewCalendarWorker(calendar *service.CalendarService, audit repository.AuditRepository, logger *zap.Logger) *CalendarWorker {
	return &CalendarWorker{calendar: calendar, audit: audit, logger: logger}
}

// Register subscribes the worker to the events that change the calendar.
func (w *CalendarWorker) Register(dispatcher events.Dispatcher) {
	if dispatcher == nil || !w.calendar.Enabled() {
		return
	}
	dispatcher.Subscribe(events.EventOfferAccepted, w.handle("offer_accepted"))
	dispatcher.Subscribe(events.EventWindowChanged, w.handle("assignment_window_changed"))
	dispatcher.Subscribe(events.EventConflictResolved, w.handle("conflict_resolved"))
}

func (w *CalendarWorker) handle(kind string) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		if err := w.calendar.Push(ctx, kind, event.Payload); err != nil {
			w.logger.Warn("calendar sync failed",
				zap.String("kind", kind),
				zap.String("org_id", event.OrgID),
				zap.Error(err))
			w.recordFailure(ctx, event, kind, err)
		}
		return nil
	}
}

func (w *CalendarWorker) recordFailure(ctx context.Context, event events.Event, kind string, pushErr error) {
	entry := &domain.AuditEvent{
		OrgID:      event.OrgID,
		EventType:  domain.AuditCalendarSyncFailed,
		ActorType:  domain.ActorSystem,
		EntityType: "calendar_sync",
		Metadata: map[string]any{
			"kind":        kind,
			"error":       pushErr.Error(),
			"remediation": "verify CALENDAR_WEBHOOK_URL is reachable, then replay from the audit log",
		},
	}
	if err := w.audit.Append(ctx, entry); err != nil {
		w.logger.Warn("calendar failure audit append failed", zap.Error(err))
	}
}
