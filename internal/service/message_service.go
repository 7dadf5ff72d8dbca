package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/internal/sms"
	"github.com/snoutos/message-router/pkg/util"
)

// SendInput shapes one outbound message request.
type SendInput struct {
	ThreadID string
	ToE164   string
	Body     string
	Actor    domain.ActorType
	ActorID  *string
}

// MessageService sends outbound messages and exposes the force-send
// override. History is never edited: a force send appends a new event
// that supersedes the failed one.
type MessageService struct {
	provider    sms.Provider
	messages    repository.MessageEventRepository
	threads     repository.ThreadRepository
	audit       repository.AuditRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	defaultFrom string
	now         func() time.Time
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	Provider    sms.Provider
	MessageRepo repository.MessageEventRepository
	ThreadRepo  repository.ThreadRepository
	AuditRepo   repository.AuditRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	DefaultFrom string
	Now         func() time.Time
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &MessageService{
		provider:    deps.Provider,
		messages:    deps.MessageRepo,
		threads:     deps.ThreadRepo,
		audit:       deps.AuditRepo,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		defaultFrom: deps.DefaultFrom,
		now:         now,
	}
}

// SendToThread delivers a message on a thread and appends the outbound
// event with the thread's responsible-sitter snapshot. The event is
// persisted whether or not the carrier accepted it; delivery_status
// records the difference.
func (s *MessageService) SendToThread(ctx context.Context, orgID string, input SendInput) (*domain.MessageEvent, error) {
	thread, err := s.threads.GetByID(ctx, input.ThreadID)
	if err != nil {
		return nil, util.NewNotFound("thread", map[string]any{"id": input.ThreadID})
	}
	if thread.OrgID != orgID {
		return nil, util.NewForbidden("thread belongs to another organization")
	}
	if input.Body == "" {
		return nil, util.NewValidationError("message body is required", nil)
	}

	from := s.defaultFrom
	if thread.MaskedNumberE164 != nil {
		from = *thread.MaskedNumberE164
	}

	event := &domain.MessageEvent{
		OrgID:               orgID,
		ThreadID:            thread.ID,
		Direction:           domain.DirectionOutbound,
		ActorType:           input.Actor,
		Body:                input.Body,
		DeliveryStatus:      domain.DeliveryQueued,
		ResponsibleSitterID: thread.AssignedSitterID,
	}

	result, sendErr := s.provider.Send(ctx, from, input.ToE164, input.Body, thread.ID)
	if sendErr != nil {
		s.logger.Error("outbound send errored",
			zap.String("thread_id", thread.ID),
			zap.Error(sendErr))
		event.DeliveryStatus = domain.DeliveryFailed
	} else if result.Delivered {
		event.DeliveryStatus = domain.DeliverySent
		if result.ProviderMessageSid != "" {
			sid := result.ProviderMessageSid
			event.ProviderMessageSid = &sid
		}
	} else {
		event.DeliveryStatus = domain.DeliveryFailed
	}

	if err := s.messages.Append(ctx, event); err != nil {
		return nil, err
	}
	if err := s.threads.TouchActivity(ctx, thread.ID, s.now(), false); err != nil {
		s.logger.Warn("thread activity update failed", zap.String("thread_id", thread.ID), zap.Error(err))
	}

	s.recordSend(ctx, event, domain.AuditOutboundSent, input.ActorID, nil)
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventOutboundSent,
			OrgID:     orgID,
			Actor:     events.Actor{Type: input.Actor, ID: input.ActorID},
			Timestamp: s.now(),
			Payload: events.OutboundSentPayload{
				MessageEventID: event.ID,
				ThreadID:       thread.ID,
				ToE164:         input.ToE164,
				ProviderSid:    event.ProviderMessageSid,
			},
		})
	}
	return event, nil
}

// ForceSend re-sends the body of a failed outbound event as a fresh
// event marked as superseding the original. The original row is never
// touched.
func (s *MessageService) ForceSend(ctx context.Context, orgID, eventID, toE164 string, actorID *string) (*domain.MessageEvent, error) {
	original, err := s.messages.GetByID(ctx, eventID)
	if err != nil {
		return nil, util.NewNotFound("message event", map[string]any{"id": eventID})
	}
	if original.OrgID != orgID {
		return nil, util.NewForbidden("message belongs to another organization")
	}
	if original.Direction != domain.DirectionOutbound {
		return nil, util.NewValidationError("only outbound messages can be force sent", nil)
	}
	if original.DeliveryStatus != domain.DeliveryFailed {
		return nil, util.NewConflict("message was not a failed delivery", map[string]any{
			"delivery_status": original.DeliveryStatus,
		})
	}

	thread, err := s.threads.GetByID(ctx, original.ThreadID)
	if err != nil {
		return nil, err
	}
	from := s.defaultFrom
	if thread.MaskedNumberE164 != nil {
		from = *thread.MaskedNumberE164
	}

	event := &domain.MessageEvent{
		OrgID:               orgID,
		ThreadID:            original.ThreadID,
		Direction:           domain.DirectionOutbound,
		ActorType:           domain.ActorOwner,
		Body:                original.Body,
		DeliveryStatus:      domain.DeliveryQueued,
		ResponsibleSitterID: original.ResponsibleSitterID,
		SupersedesEventID:   &original.ID,
	}

	result, sendErr := s.provider.Send(ctx, from, toE164, original.Body, original.ThreadID)
	if sendErr != nil || !result.Delivered {
		event.DeliveryStatus = domain.DeliveryFailed
	} else {
		event.DeliveryStatus = domain.DeliverySent
		if result.ProviderMessageSid != "" {
			sid := result.ProviderMessageSid
			event.ProviderMessageSid = &sid
		}
	}

	if err := s.messages.Append(ctx, event); err != nil {
		return nil, err
	}
	s.recordSend(ctx, event, domain.AuditForceSend, actorID, &original.ID)
	return event, nil
}

// ListThreadMessages pages a thread's event log, newest first.
func (s *MessageService) ListThreadMessages(ctx context.Context, orgID, threadID string, limit int) ([]domain.MessageEvent, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, util.NewNotFound("thread", map[string]any{"id": threadID})
	}
	if thread.OrgID != orgID {
		return nil, util.NewForbidden("thread belongs to another organization")
	}
	return s.messages.ListByThread(ctx, threadID, limit)
}

func (s *MessageService) recordSend(ctx context.Context, event *domain.MessageEvent, eventType domain.AuditEventType, actorID *string, supersedes *string) {
	eventID := event.ID
	metadata := map[string]any{
		"thread_id":       event.ThreadID,
		"delivery_status": event.DeliveryStatus,
	}
	if supersedes != nil {
		metadata["supersedes_event_id"] = *supersedes
	}
	entry := &domain.AuditEvent{
		OrgID:      event.OrgID,
		EventType:  eventType,
		ActorType:  event.ActorType,
		ActorID:    actorID,
		EntityType: "message_event",
		EntityID:   &eventID,
		Metadata:   metadata,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("send audit append failed", zap.String("event_id", event.ID), zap.Error(err))
	}
}
