package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/internal/sms"
)

// DedupCache is the fast-path seen-sid check in front of the database
// uniqueness constraint. Implementations fail open.
type DedupCache interface {
	MarkSeen(ctx context.Context, orgID, providerMessageSid string) bool
}

// InboundResult is what the webhook handler renders. Reply is the TwiML
// message body; empty suppresses the auto-reply.
type InboundResult struct {
	Reply string
}

// WebhookService is the inbound SMS pipeline: verify, resolve, dedup,
// then either dispatch a sitter command or route and persist the message.
// Every failure mode resolves to a neutral result; the HTTP layer always
// answers 200 so the provider never retries.
type WebhookService struct {
	provider   sms.Provider
	resolver   *ResolverService
	routing    *RoutingService
	offersSvc  *OfferService
	messages   repository.MessageEventRepository
	threads    repository.ThreadRepository
	audit      repository.AuditRepository
	dedup      DedupCache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	webhookURL string
	now        func() time.Time
}

// WebhookDependencies bundles collaborators for the webhook service.
type WebhookDependencies struct {
	Provider    sms.Provider
	Resolver    *ResolverService
	Routing     *RoutingService
	Offers      *OfferService
	MessageRepo repository.MessageEventRepository
	ThreadRepo  repository.ThreadRepository
	AuditRepo   repository.AuditRepository
	Dedup       DedupCache
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	WebhookURL  string
	Now         func() time.Time
}

// NewWebhookService constructs the service.
func NewWebhookService(deps WebhookDependencies) *WebhookService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &WebhookService{
		provider:   deps.Provider,
		resolver:   deps.Resolver,
		routing:    deps.Routing,
		offersSvc:  deps.Offers,
		messages:   deps.MessageRepo,
		threads:    deps.ThreadRepo,
		audit:      deps.AuditRepo,
		dedup:      deps.Dedup,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		webhookURL: deps.WebhookURL,
		now:        now,
	}
}

// HandleInbound processes one webhook delivery. It never returns an
// error: internal failures become audit entries and a neutral reply.
// Signatures are checked against the configured callback URL, never a
// caller-reported one.
func (s *WebhookService) HandleInbound(ctx context.Context, rawBody, signature string) InboundResult {
	if !s.provider.VerifySignature(rawBody, signature, s.webhookURL) {
		s.logger.Warn("webhook signature rejected")
		s.recordFailure(ctx, "", "", "invalid webhook signature",
			"confirm TWILIO_AUTH_TOKEN and TWILIO_WEBHOOK_URL match the Twilio console")
		return InboundResult{}
	}

	payload, err := sms.ParseInbound(rawBody)
	if err != nil || payload.MessageSid == "" || payload.From == "" || payload.To == "" {
		s.logger.Warn("webhook payload malformed", zap.Error(err))
		s.recordFailure(ctx, "", payload.MessageSid, "malformed webhook payload",
			"inspect the raw delivery in the Twilio debugger")
		return InboundResult{}
	}

	log := s.logger.With(zap.String("message_sid", payload.MessageSid))

	number, err := s.resolver.ResolveNumber(ctx, payload.To)
	if err != nil {
		log.Warn("inbound number unresolvable", zap.String("to", payload.To))
		s.recordFailure(ctx, "", payload.MessageSid, "destination number not provisioned",
			"map "+payload.To+" to an organization or quarantine it")
		return InboundResult{}
	}

	// Dedup before any state mutation. Redis is the fast path; the store
	// lookup backstops it when the cache is cold or down, and the unique
	// constraint on (org_id, provider_message_sid) is the guarantee.
	if s.dedup != nil && s.dedup.MarkSeen(ctx, number.OrgID, payload.MessageSid) {
		log.Debug("duplicate delivery absorbed")
		s.recordDuplicate(ctx, number.OrgID, payload.MessageSid)
		return InboundResult{}
	}
	if seen, err := s.messages.ExistsByProviderSid(ctx, number.OrgID, payload.MessageSid); err == nil && seen {
		log.Debug("duplicate delivery absorbed by store lookup")
		s.recordDuplicate(ctx, number.OrgID, payload.MessageSid)
		return InboundResult{}
	}

	sender, err := s.resolver.ResolveSender(ctx, number.OrgID, payload.From)
	if err != nil {
		log.Error("sender resolution failed", zap.Error(err))
		s.recordFailure(ctx, number.OrgID, payload.MessageSid, "sender lookup failed",
			"check database availability")
		return InboundResult{}
	}

	if sender.Kind == SenderSitter {
		if command := sms.ParseCommand(payload.Body); command != sms.CommandNone {
			return s.handleCommand(ctx, number.OrgID, sender, command, log)
		}
	}

	return s.handleMessage(ctx, number, sender, payload, log)
}

// handleCommand dispatches a recognized YES/NO keyword to the offer
// processor and echoes its outcome as the TwiML reply.
func (s *WebhookService) handleCommand(ctx context.Context, orgID string, sender Sender, command sms.Command, log *zap.Logger) InboundResult {
	var outcome *OfferOutcome
	var err error
	switch command {
	case sms.CommandAccept:
		outcome, err = s.offersSvc.Accept(ctx, orgID, sender.Sitter.ID)
	case sms.CommandDecline:
		outcome, err = s.offersSvc.Decline(ctx, orgID, sender.Sitter.ID)
	}
	if err != nil {
		log.Error("offer command failed", zap.Error(err))
		s.recordFailure(ctx, orgID, "", "offer command processing failed",
			"check offer and booking state for sitter "+sender.Sitter.ID)
		return InboundResult{Reply: "Sorry, something went wrong. Please try again in a moment."}
	}
	log.Info("offer command processed",
		zap.String("sitter_id", sender.Sitter.ID),
		zap.String("status", string(outcome.Status)),
		zap.Bool("changed", outcome.Changed))
	return InboundResult{Reply: outcome.Reply}
}

// handleMessage is the normal routing path: resolve the thread, evaluate
// routing, persist the event with the responsible-sitter snapshot, and
// record the decision trace.
func (s *WebhookService) handleMessage(ctx context.Context, number *domain.MessageNumber, sender Sender, payload sms.InboundPayload, log *zap.Logger) InboundResult {
	at := s.now()

	thread, err := s.resolver.ThreadForSender(ctx, number, sender)
	if err != nil {
		log.Error("thread resolution failed", zap.Error(err))
		s.recordFailure(ctx, number.OrgID, payload.MessageSid, "thread resolution failed",
			"check database availability")
		return InboundResult{}
	}

	decision, err := s.routing.EvaluateThread(ctx, thread, at)
	if err != nil {
		log.Error("routing evaluation failed", zap.Error(err))
		s.recordFailure(ctx, number.OrgID, payload.MessageSid, "routing evaluation failed",
			"check overrides and windows for thread "+thread.ID)
		return InboundResult{}
	}

	sid := payload.MessageSid
	event := &domain.MessageEvent{
		OrgID:               number.OrgID,
		ThreadID:            thread.ID,
		Direction:           domain.DirectionInbound,
		ActorType:           sender.ActorType(),
		Body:                payload.Body,
		ProviderMessageSid:  &sid,
		DeliveryStatus:      domain.DeliveryReceived,
		ResponsibleSitterID: thread.AssignedSitterID,
	}
	if err := s.messages.Append(ctx, event); err != nil {
		if err == repository.ErrDuplicateMessage {
			log.Debug("duplicate delivery absorbed by constraint")
			s.recordDuplicate(ctx, number.OrgID, payload.MessageSid)
			return InboundResult{}
		}
		log.Error("message persist failed", zap.Error(err))
		s.recordFailure(ctx, number.OrgID, payload.MessageSid, "message persistence failed",
			"check database availability")
		return InboundResult{}
	}

	if err := s.threads.TouchActivity(ctx, thread.ID, at, true); err != nil {
		log.Warn("thread activity update failed", zap.Error(err))
	}
	s.recordParticipant(ctx, thread.ID, sender, payload.From, log)

	s.routing.RecordDecision(ctx, number.OrgID, event.ID, decision)
	s.recordInbound(ctx, event, payload.MessageSid)

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:      events.EventInboundReceived,
			OrgID:     number.OrgID,
			Actor:     events.Actor{Type: sender.ActorType()},
			Timestamp: at,
			Payload: events.InboundReceivedPayload{
				MessageEventID: event.ID,
				ThreadID:       thread.ID,
				MessageSid:     payload.MessageSid,
				Target:         decision.Target,
				TargetID:       decision.TargetID,
			},
		})
	}

	log.Info("inbound message routed",
		zap.String("thread_id", thread.ID),
		zap.String("target", string(decision.Target)))
	return InboundResult{}
}

func (s *WebhookService) recordParticipant(ctx context.Context, threadID string, sender Sender, fromE164 string, log *zap.Logger) {
	role := domain.RoleClient
	if sender.Kind == SenderSitter {
		role = domain.RoleSitter
	}
	p := &domain.Participant{ThreadID: threadID, Role: role, E164: fromE164}
	if err := s.threads.AddParticipant(ctx, p); err != nil {
		log.Warn("participant record failed", zap.Error(err))
	}
}

func (s *WebhookService) recordInbound(ctx context.Context, event *domain.MessageEvent, sid string) {
	eventID := event.ID
	entry := &domain.AuditEvent{
		OrgID:      event.OrgID,
		EventType:  domain.AuditInboundReceived,
		ActorType:  event.ActorType,
		EntityType: "message_event",
		EntityID:   &eventID,
		Metadata: map[string]any{
			"thread_id":   event.ThreadID,
			"message_sid": sid,
		},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("inbound audit append failed", zap.String("message_sid", sid), zap.Error(err))
	}
}

func (s *WebhookService) recordDuplicate(ctx context.Context, orgID, sid string) {
	entry := &domain.AuditEvent{
		OrgID:      orgID,
		EventType:  domain.AuditDuplicateAbsorbed,
		ActorType:  domain.ActorSystem,
		EntityType: "message_event",
		Metadata:   map[string]any{"message_sid": sid},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("duplicate audit append failed", zap.String("message_sid", sid), zap.Error(err))
	}
}

// recordFailure logs an unprocessable delivery with a remediation hint
// for operators. Entries with no resolvable org are stored org-less.
func (s *WebhookService) recordFailure(ctx context.Context, orgID, sid, reason, remediation string) {
	entry := &domain.AuditEvent{
		OrgID:      orgID,
		EventType:  domain.AuditRoutingFailed,
		ActorType:  domain.ActorSystem,
		EntityType: "webhook",
		Metadata: map[string]any{
			"message_sid": sid,
			"reason":      reason,
			"remediation": remediation,
		},
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("failure audit append failed",
			zap.String("message_sid", sid),
			zap.String("reason", reason),
			zap.Error(err))
	}
}
