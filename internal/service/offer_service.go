package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/repository"
)

// OfferOutcome is what an accept/decline attempt produced, plus the
// message echoed back to the sitter. Changed is false for duplicate or
// inapplicable commands, which are normal outcomes, not errors.
type OfferOutcome struct {
	Offer           *domain.OfferEvent
	Status          domain.OfferStatus
	Changed         bool
	ResponseSeconds *float64
	Reply           string
}

// OfferService applies the sent → {accepted, declined, expired} state
// machine. Idempotency is structural: only sent offers are addressable and
// the terminal write carries a status guard, so duplicates short-circuit
// without locks.
type OfferService struct {
	offers     repository.OfferRepository
	bookings   repository.BookingRepository
	messages   repository.MessageEventRepository
	threads    repository.ThreadRepository
	audit      repository.AuditRepository
	tx         repository.TxRunner
	metrics    *MetricsService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// OfferDependencies bundles collaborators for the offer service.
type OfferDependencies struct {
	OfferRepo   repository.OfferRepository
	BookingRepo repository.BookingRepository
	MessageRepo repository.MessageEventRepository
	ThreadRepo  repository.ThreadRepository
	AuditRepo   repository.AuditRepository
	TxRunner    repository.TxRunner
	Metrics     *MetricsService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewOfferService constructs the service.
func NewOfferService(deps OfferDependencies) *OfferService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &OfferService{
		offers:     deps.OfferRepo,
		bookings:   deps.BookingRepo,
		messages:   deps.MessageRepo,
		threads:    deps.ThreadRepo,
		audit:      deps.AuditRepo,
		tx:         deps.TxRunner,
		metrics:    deps.Metrics,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        now,
	}
}

// Accept resolves the sitter's addressable offer and accepts it. The
// offer transition, booking assignment, and metrics recompute commit in
// one transaction; calendar sync and the summary message run after commit
// and fail open.
func (s *OfferService) Accept(ctx context.Context, orgID, sitterID string) (*OfferOutcome, error) {
	at := s.now()
	offer, err := s.offers.FindLatestAddressable(ctx, orgID, sitterID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return &OfferOutcome{Reply: "There is no open offer waiting for you right now."}, nil
	}
	if offer.ExpiredAt(at) {
		return s.expireOne(ctx, offer, at)
	}

	booking, err := s.bookings.GetByID(ctx, offer.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.SitterID != nil && *booking.SitterID != sitterID {
		// Taken by someone else, distinct from "you already answered".
		return s.bookingTaken(offer), nil
	}

	var changed bool
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		acceptedAt := at
		changed, err = s.offers.Transition(txCtx, repository.OfferTransition{
			OfferID:    offer.ID,
			Status:     domain.OfferStatusAccepted,
			AcceptedAt: &acceptedAt,
		})
		if err != nil {
			return err
		}
		if !changed {
			// Lost the race: another delivery already resolved it.
			return nil
		}
		if err := s.bookings.AssignSitter(txCtx, offer.BookingID, sitterID); err != nil {
			return err
		}
		_, err = s.metrics.Recompute(txCtx, orgID, sitterID, at)
		return err
	})
	if errors.Is(err, repository.ErrBookingTaken) {
		// A rival offer on the same booking committed between our read and
		// this write. The rollback leaves this offer sent.
		return s.bookingTaken(offer), nil
	}
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := s.offers.GetByID(ctx, offer.ID)
		if err != nil {
			return nil, err
		}
		return s.alreadyResolved(current), nil
	}

	responseSeconds := at.Sub(offer.OfferedAt).Seconds()
	offer.Status = domain.OfferStatusAccepted
	offer.AcceptedAt = &at

	s.recordOutcome(ctx, offer, domain.AuditOfferAccepted, map[string]any{
		"booking_id":       offer.BookingID,
		"response_seconds": responseSeconds,
	})
	s.publishOutcome(ctx, offer, events.EventOfferAccepted, &responseSeconds)
	reply := "You got it! The booking is yours."
	s.echoToSitterThread(ctx, orgID, sitterID, fmt.Sprintf("Offer %s accepted, booking %s confirmed.", offer.ID, offer.BookingID))

	return &OfferOutcome{
		Offer:           offer,
		Status:          domain.OfferStatusAccepted,
		Changed:         true,
		ResponseSeconds: &responseSeconds,
		Reply:           reply,
	}, nil
}

// Decline resolves the sitter's addressable offer and declines it. A
// decline arriving after expiresAt records expired, not declined, so a
// timeout never masquerades as an active refusal.
func (s *OfferService) Decline(ctx context.Context, orgID, sitterID string) (*OfferOutcome, error) {
	at := s.now()
	offer, err := s.offers.FindLatestAddressable(ctx, orgID, sitterID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return &OfferOutcome{Reply: "There is no open offer waiting for you right now."}, nil
	}
	if offer.ExpiredAt(at) {
		return s.expireOne(ctx, offer, at)
	}

	var changed bool
	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		declinedAt := at
		reason := domain.DeclineReasonDeclined
		changed, err = s.offers.Transition(txCtx, repository.OfferTransition{
			OfferID:       offer.ID,
			Status:        domain.OfferStatusDeclined,
			DeclinedAt:    &declinedAt,
			DeclineReason: &reason,
		})
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		_, err = s.metrics.Recompute(txCtx, orgID, sitterID, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := s.offers.GetByID(ctx, offer.ID)
		if err != nil {
			return nil, err
		}
		return s.alreadyResolved(current), nil
	}

	responseSeconds := at.Sub(offer.OfferedAt).Seconds()
	reason := domain.DeclineReasonDeclined
	offer.Status = domain.OfferStatusDeclined
	offer.DeclinedAt = &at
	offer.DeclineReason = &reason

	s.recordOutcome(ctx, offer, domain.AuditOfferDeclined, map[string]any{
		"booking_id":       offer.BookingID,
		"response_seconds": responseSeconds,
	})
	s.publishOutcome(ctx, offer, events.EventOfferDeclined, &responseSeconds)
	s.echoToSitterThread(ctx, orgID, sitterID, fmt.Sprintf("Offer %s declined.", offer.ID))

	return &OfferOutcome{
		Offer:           offer,
		Status:          domain.OfferStatusDeclined,
		Changed:         true,
		ResponseSeconds: &responseSeconds,
		Reply:           "No problem, we'll offer this booking to someone else.",
	}, nil
}

// ExpireDue sweeps sent offers whose deadline passed and records them as
// expired. Returns how many offers were transitioned.
func (s *OfferService) ExpireDue(ctx context.Context, limit int) (int, error) {
	at := s.now()
	due, err := s.offers.ListExpiredDue(ctx, at, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range due {
		outcome, err := s.expireOne(ctx, &due[i], at)
		if err != nil {
			s.logger.Warn("offer expiry sweep failed",
				zap.String("offer_id", due[i].ID),
				zap.Error(err))
			continue
		}
		if outcome.Changed {
			expired++
		}
	}
	return expired, nil
}

// expireOne flips one overdue offer to expired with declineReason=expired
// and refreshes the sitter's metrics window.
func (s *OfferService) expireOne(ctx context.Context, offer *domain.OfferEvent, at time.Time) (*OfferOutcome, error) {
	var changed bool
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		reason := domain.DeclineReasonExpired
		declinedAt := at
		var err error
		changed, err = s.offers.Transition(txCtx, repository.OfferTransition{
			OfferID:       offer.ID,
			Status:        domain.OfferStatusExpired,
			DeclinedAt:    &declinedAt,
			DeclineReason: &reason,
		})
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		_, err = s.metrics.Recompute(txCtx, offer.OrgID, offer.SitterID, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := s.offers.GetByID(ctx, offer.ID)
		if err != nil {
			return nil, err
		}
		return s.alreadyResolved(current), nil
	}

	reason := domain.DeclineReasonExpired
	offer.Status = domain.OfferStatusExpired
	offer.DeclinedAt = &at
	offer.DeclineReason = &reason

	s.recordOutcome(ctx, offer, domain.AuditOfferExpired, map[string]any{
		"booking_id": offer.BookingID,
		"expired_at": offer.ExpiresAt,
	})
	s.publishOutcome(ctx, offer, events.EventOfferExpired, nil)

	return &OfferOutcome{
		Offer:   offer,
		Status:  domain.OfferStatusExpired,
		Changed: true,
		Reply:   "That offer has expired, so we've released it.",
	}, nil
}

// bookingTaken builds the informational outcome for an accept against a
// booking some other sitter already holds.
func (s *OfferService) bookingTaken(offer *domain.OfferEvent) *OfferOutcome {
	return &OfferOutcome{
		Offer:  offer,
		Status: offer.Status,
		Reply:  "Sorry, this booking has already been assigned to another sitter.",
	}
}

// alreadyResolved builds the informational outcome for duplicate commands
// against a terminal offer. Expected under duplicate SMS delivery.
func (s *OfferService) alreadyResolved(offer *domain.OfferEvent) *OfferOutcome {
	var reply string
	switch offer.Status {
	case domain.OfferStatusAccepted:
		reply = "You already accepted this offer."
	case domain.OfferStatusDeclined:
		reply = "You already declined this offer."
	case domain.OfferStatusExpired:
		reply = "That offer has already expired."
	default:
		reply = "This offer was already handled."
	}
	return &OfferOutcome{Offer: offer, Status: offer.Status, Reply: reply}
}

// recordOutcome appends the audit entry for a terminal transition.
func (s *OfferService) recordOutcome(ctx context.Context, offer *domain.OfferEvent, eventType domain.AuditEventType, metadata map[string]any) {
	sitterID := offer.SitterID
	offerID := offer.ID
	entry := &domain.AuditEvent{
		OrgID:      offer.OrgID,
		EventType:  eventType,
		ActorType:  domain.ActorSitter,
		ActorID:    &sitterID,
		EntityType: "offer_event",
		EntityID:   &offerID,
		Metadata:   metadata,
	}
	if eventType == domain.AuditOfferExpired {
		entry.ActorType = domain.ActorSystem
		entry.ActorID = nil
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("offer audit append failed", zap.String("offer_id", offer.ID), zap.Error(err))
	}
}

func (s *OfferService) publishOutcome(ctx context.Context, offer *domain.OfferEvent, eventType events.EventType, responseSeconds *float64) {
	if s.dispatcher == nil {
		return
	}
	bookingID := offer.BookingID
	sitterID := offer.SitterID
	actor := events.Actor{Type: domain.ActorSitter, ID: &sitterID}
	if eventType == events.EventOfferExpired {
		actor = events.Actor{Type: domain.ActorSystem}
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		OrgID:     offer.OrgID,
		Actor:     actor,
		Timestamp: s.now(),
		Payload: events.OfferRespondedPayload{
			OfferID:         offer.ID,
			BookingID:       &bookingID,
			SitterID:        offer.SitterID,
			Status:          offer.Status,
			DeclineReason:   offer.DeclineReason,
			ResponseSeconds: responseSeconds,
		},
	})
}

// echoToSitterThread writes a system message summarizing the outcome into
// the sitter's most recent eligible thread. Best-effort: a failed summary
// never fails the command.
func (s *OfferService) echoToSitterThread(ctx context.Context, orgID, sitterID, body string) {
	thread, err := s.threads.FindLatestForSitter(ctx, orgID, sitterID)
	if err != nil {
		s.logger.Debug("no thread for offer summary",
			zap.String("sitter_id", sitterID),
			zap.Error(err))
		return
	}
	event := &domain.MessageEvent{
		OrgID:          orgID,
		ThreadID:       thread.ID,
		Direction:      domain.DirectionOutbound,
		ActorType:      domain.ActorSystem,
		Body:           body,
		DeliveryStatus: domain.DeliverySent,
	}
	if err := s.messages.Append(ctx, event); err != nil {
		s.logger.Warn("offer summary message failed",
			zap.String("thread_id", thread.ID),
			zap.Error(err))
	}
}
