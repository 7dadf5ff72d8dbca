package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/events"
	"github.com/snoutos/message-router/internal/repository"
	"github.com/snoutos/message-router/internal/sms"
)

// Fakes shared by the service tests. Behavior is injected through func
// fields; a nil field means "not expected on this path" and returns the
// zero value.

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeOfferRepo struct {
	createFunc                func(ctx context.Context, offer *domain.OfferEvent) error
	getByIDFunc               func(ctx context.Context, id string) (*domain.OfferEvent, error)
	findLatestAddressableFunc func(ctx context.Context, orgID, sitterID string) (*domain.OfferEvent, error)
	transitionFunc            func(ctx context.Context, t repository.OfferTransition) (bool, error)
	listInWindowFunc          func(ctx context.Context, orgID, sitterID string, from, to time.Time) ([]domain.OfferEvent, error)
	listExpiredDueFunc        func(ctx context.Context, now time.Time, limit int) ([]domain.OfferEvent, error)

	transitions []repository.OfferTransition
}

func (f *fakeOfferRepo) Create(ctx context.Context, offer *domain.OfferEvent) error {
	if f.createFunc == nil {
		return nil
	}
	return f.createFunc(ctx, offer)
}

func (f *fakeOfferRepo) GetByID(ctx context.Context, id string) (*domain.OfferEvent, error) {
	if f.getByIDFunc == nil {
		return nil, pgx.ErrNoRows
	}
	return f.getByIDFunc(ctx, id)
}

func (f *fakeOfferRepo) FindLatestAddressable(ctx context.Context, orgID, sitterID string) (*domain.OfferEvent, error) {
	if f.findLatestAddressableFunc == nil {
		return nil, nil
	}
	return f.findLatestAddressableFunc(ctx, orgID, sitterID)
}

func (f *fakeOfferRepo) Transition(ctx context.Context, t repository.OfferTransition) (bool, error) {
	f.transitions = append(f.transitions, t)
	if f.transitionFunc == nil {
		return true, nil
	}
	return f.transitionFunc(ctx, t)
}

func (f *fakeOfferRepo) ListInWindow(ctx context.Context, orgID, sitterID string, from, to time.Time) ([]domain.OfferEvent, error) {
	if f.listInWindowFunc == nil {
		return nil, nil
	}
	return f.listInWindowFunc(ctx, orgID, sitterID, from, to)
}

func (f *fakeOfferRepo) ListExpiredDue(ctx context.Context, now time.Time, limit int) ([]domain.OfferEvent, error) {
	if f.listExpiredDueFunc == nil {
		return nil, nil
	}
	return f.listExpiredDueFunc(ctx, now, limit)
}

type fakeBookingRepo struct {
	getByIDFunc func(ctx context.Context, id string) (*domain.Booking, error)
	assignFunc  func(ctx context.Context, bookingID, sitterID string) error

	assigned map[string]string
}

func (f *fakeBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if f.getByIDFunc == nil {
		return nil, pgx.ErrNoRows
	}
	return f.getByIDFunc(ctx, id)
}

func (f *fakeBookingRepo) AssignSitter(ctx context.Context, bookingID, sitterID string) error {
	if f.assignFunc != nil {
		if err := f.assignFunc(ctx, bookingID, sitterID); err != nil {
			return err
		}
	}
	if f.assigned == nil {
		f.assigned = make(map[string]string)
	}
	f.assigned[bookingID] = sitterID
	return nil
}

type fakeMessageRepo struct {
	appendFunc  func(ctx context.Context, event *domain.MessageEvent) error
	getByIDStub func(ctx context.Context, id string) (*domain.MessageEvent, error)
	existsFunc  func(ctx context.Context, orgID, providerMessageSid string) (bool, error)

	appended []*domain.MessageEvent
}

func (f *fakeMessageRepo) Append(ctx context.Context, event *domain.MessageEvent) error {
	if f.appendFunc != nil {
		if err := f.appendFunc(ctx, event); err != nil {
			return err
		}
	}
	if event.ID == "" {
		event.ID = "evt-fake"
	}
	f.appended = append(f.appended, event)
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.MessageEvent, error) {
	if f.getByIDStub == nil {
		return nil, pgx.ErrNoRows
	}
	return f.getByIDStub(ctx, id)
}

func (f *fakeMessageRepo) ExistsByProviderSid(ctx context.Context, orgID, providerMessageSid string) (bool, error) {
	if f.existsFunc == nil {
		return false, nil
	}
	return f.existsFunc(ctx, orgID, providerMessageSid)
}

func (f *fakeMessageRepo) ListByThread(ctx context.Context, threadID string, limit int) ([]domain.MessageEvent, error) {
	return nil, nil
}

type fakeThreadRepo struct {
	createFunc              func(ctx context.Context, thread *domain.Thread) error
	getByIDFunc             func(ctx context.Context, id string) (*domain.Thread, error)
	findOpenFunc            func(ctx context.Context, lookup repository.ThreadLookup) (*domain.Thread, error)
	findLatestForSitterFunc func(ctx context.Context, orgID, sitterID string) (*domain.Thread, error)

	created      []*domain.Thread
	touched      []string
	participants []*domain.Participant
}

func (f *fakeThreadRepo) Create(ctx context.Context, thread *domain.Thread) error {
	if f.createFunc != nil {
		if err := f.createFunc(ctx, thread); err != nil {
			return err
		}
	}
	if thread.ID == "" {
		thread.ID = "thread-fake"
	}
	f.created = append(f.created, thread)
	return nil
}

func (f *fakeThreadRepo) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	if f.getByIDFunc == nil {
		return nil, pgx.ErrNoRows
	}
	return f.getByIDFunc(ctx, id)
}

func (f *fakeThreadRepo) FindOpen(ctx context.Context, lookup repository.ThreadLookup) (*domain.Thread, error) {
	if f.findOpenFunc == nil {
		return nil, pgx.ErrNoRows
	}
	return f.findOpenFunc(ctx, lookup)
}

func (f *fakeThreadRepo) FindLatestForSitter(ctx context.Context, orgID, sitterID string) (*domain.Thread, error) {
	if f.findLatestForSitterFunc == nil {
		return nil, pgx.ErrNoRows
	}
	return f.findLatestForSitterFunc(ctx, orgID, sitterID)
}

func (f *fakeThreadRepo) TouchActivity(ctx context.Context, threadID string, at time.Time, inbound bool) error {
	f.touched = append(f.touched, threadID)
	return nil
}

func (f *fakeThreadRepo) AddParticipant(ctx context.Context, p *domain.Participant) error {
	f.participants = append(f.participants, p)
	return nil
}

func (f *fakeThreadRepo) ListParticipants(ctx context.Context, threadID string) ([]domain.Participant, error) {
	return nil, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEvent
}

func (f *fakeAuditRepo) Append(ctx context.Context, event *domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, event)
	return nil
}

func (f *fakeAuditRepo) ListByOrg(ctx context.Context, orgID string, eventType string, limit int) ([]domain.AuditEvent, error) {
	return nil, nil
}

func (f *fakeAuditRepo) byType(eventType domain.AuditEventType) []*domain.AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AuditEvent
	for _, e := range f.entries {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeMetricsRepo struct {
	upserted []*domain.SitterMetricsWindow
}

func (f *fakeMetricsRepo) Upsert(ctx context.Context, window *domain.SitterMetricsWindow) error {
	f.upserted = append(f.upserted, window)
	return nil
}

func (f *fakeMetricsRepo) Get(ctx context.Context, orgID, sitterID, windowType string) (*domain.SitterMetricsWindow, error) {
	if len(f.upserted) == 0 {
		return nil, nil
	}
	return f.upserted[len(f.upserted)-1], nil
}

type fakeWindowRepo struct {
	listByThreadFunc func(ctx context.Context, threadID string) ([]domain.AssignmentWindow, error)
	listActiveAtFunc func(ctx context.Context, threadID string, at time.Time) ([]domain.AssignmentWindow, error)
	getByIDFunc      func(ctx context.Context, id string) (*domain.AssignmentWindow, error)

	created []*domain.AssignmentWindow
	updated []*domain.AssignmentWindow
	deleted []string
}

func (f *fakeWindowRepo) Create(ctx context.Context, window *domain.AssignmentWindow) error {
	if window.ID == "" {
		window.ID = "win-fake"
	}
	f.created = append(f.created, window)
	return nil
}

func (f *fakeWindowRepo) Update(ctx context.Context, window *domain.AssignmentWindow) error {
	copied := *window
	f.updated = append(f.updated, &copied)
	return nil
}

func (f *fakeWindowRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeWindowRepo) GetByID(ctx context.Context, id string) (*domain.AssignmentWindow, error) {
	if f.getByIDFunc == nil {
		return nil, pgx.ErrNoRows
	}
	return f.getByIDFunc(ctx, id)
}

func (f *fakeWindowRepo) ListByThread(ctx context.Context, threadID string) ([]domain.AssignmentWindow, error) {
	if f.listByThreadFunc == nil {
		return nil, nil
	}
	return f.listByThreadFunc(ctx, threadID)
}

func (f *fakeWindowRepo) ListActiveAt(ctx context.Context, threadID string, at time.Time) ([]domain.AssignmentWindow, error) {
	if f.listActiveAtFunc == nil {
		return nil, nil
	}
	return f.listActiveAtFunc(ctx, threadID, at)
}

type fakeOverrideRepo struct {
	findActiveFunc func(ctx context.Context, threadID string, at time.Time) (*domain.RoutingOverride, error)
}

func (f *fakeOverrideRepo) Create(ctx context.Context, override *domain.RoutingOverride) error {
	return nil
}

func (f *fakeOverrideRepo) Remove(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (f *fakeOverrideRepo) GetByID(ctx context.Context, id string) (*domain.RoutingOverride, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeOverrideRepo) FindActive(ctx context.Context, threadID string, at time.Time) (*domain.RoutingOverride, error) {
	if f.findActiveFunc == nil {
		return nil, nil
	}
	return f.findActiveFunc(ctx, threadID, at)
}

func (f *fakeOverrideRepo) ListByThread(ctx context.Context, threadID string) ([]domain.RoutingOverride, error) {
	return nil, nil
}

type fakeSitterRepo struct {
	getByIDFunc    func(ctx context.Context, orgID, sitterID string) (*domain.Sitter, error)
	getByPhoneFunc func(ctx context.Context, orgID, e164 string) (*domain.Sitter, error)
}

func (f *fakeSitterRepo) GetByID(ctx context.Context, orgID, sitterID string) (*domain.Sitter, error) {
	if f.getByIDFunc == nil {
		return nil, nil
	}
	return f.getByIDFunc(ctx, orgID, sitterID)
}

func (f *fakeSitterRepo) GetByPhone(ctx context.Context, orgID, e164 string) (*domain.Sitter, error) {
	if f.getByPhoneFunc == nil {
		return nil, nil
	}
	return f.getByPhoneFunc(ctx, orgID, e164)
}

func (f *fakeSitterRepo) ListActive(ctx context.Context, orgID string) ([]domain.Sitter, error) {
	return nil, nil
}

type fakeClientRepo struct {
	findByPhoneFunc func(ctx context.Context, orgID, e164 string) (*domain.Client, error)
}

func (f *fakeClientRepo) GetByID(ctx context.Context, orgID, clientID string) (*domain.Client, error) {
	return nil, nil
}

func (f *fakeClientRepo) FindByPhone(ctx context.Context, orgID, e164 string) (*domain.Client, error) {
	if f.findByPhoneFunc == nil {
		return nil, nil
	}
	return f.findByPhoneFunc(ctx, orgID, e164)
}

type fakeNumberRepo struct {
	getActiveByE164Func func(ctx context.Context, e164 string) (*domain.MessageNumber, error)
}

func (f *fakeNumberRepo) GetActiveByE164(ctx context.Context, e164 string) (*domain.MessageNumber, error) {
	if f.getActiveByE164Func == nil {
		return nil, pgx.ErrNoRows
	}
	return f.getActiveByE164Func(ctx, e164)
}

func (f *fakeNumberRepo) GetByID(ctx context.Context, id string) (*domain.MessageNumber, error) {
	return nil, pgx.ErrNoRows
}

type fakeProvider struct {
	verifyFunc func(rawBody, signature, callbackURL string) bool
	sendFunc   func(ctx context.Context, fromE164, toE164, body, correlationID string) (sms.SendResult, error)
}

func (f *fakeProvider) Send(ctx context.Context, fromE164, toE164, body, correlationID string) (sms.SendResult, error) {
	if f.sendFunc == nil {
		return sms.SendResult{Delivered: true, ProviderMessageSid: "SM-fake"}, nil
	}
	return f.sendFunc(ctx, fromE164, toE164, body, correlationID)
}

func (f *fakeProvider) VerifySignature(rawBody, signature, callbackURL string) bool {
	if f.verifyFunc == nil {
		return true
	}
	return f.verifyFunc(rawBody, signature, callbackURL)
}

type fakeDedup struct {
	seen map[string]bool
}

func (f *fakeDedup) MarkSeen(ctx context.Context, orgID, providerMessageSid string) bool {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := orgID + ":" + providerMessageSid
	already := f.seen[key]
	f.seen[key] = true
	return already
}

type fakeDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (f *fakeDispatcher) Publish(ctx context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	return nil
}

func (f *fakeDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (f *fakeDispatcher) byType(eventType events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func strPtr(s string) *string {
	return &s
}
