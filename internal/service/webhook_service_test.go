package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoutos/message-router/internal/domain"
)

type webhookFixture struct {
	svc      *WebhookService
	provider *fakeProvider
	numbers  *fakeNumberRepo
	sitters  *fakeSitterRepo
	clients  *fakeClientRepo
	threads  *fakeThreadRepo
	messages *fakeMessageRepo
	offers   *fakeOfferRepo
	bookings *fakeBookingRepo
	audit    *fakeAuditRepo
	dedup    *fakeDedup
	now      time.Time
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f := &webhookFixture{
		provider: &fakeProvider{},
		numbers:  &fakeNumberRepo{},
		sitters:  &fakeSitterRepo{},
		clients:  &fakeClientRepo{},
		threads:  &fakeThreadRepo{},
		messages: &fakeMessageRepo{},
		offers:   &fakeOfferRepo{},
		bookings: &fakeBookingRepo{},
		audit:    &fakeAuditRepo{},
		dedup:    &fakeDedup{},
		now:      now,
	}

	resolver := NewResolverService(ResolverDependencies{
		NumberRepo: f.numbers,
		ThreadRepo: f.threads,
		SitterRepo: f.sitters,
		ClientRepo: f.clients,
	})
	routing := NewRoutingService(RoutingDependencies{
		ThreadRepo:   f.threads,
		OverrideRepo: &fakeOverrideRepo{},
		WindowRepo:   &fakeWindowRepo{},
		AuditRepo:    f.audit,
		Logger:       testLogger(),
	})
	metricsSvc := NewMetricsService(f.offers, &fakeMetricsRepo{}, testLogger())
	offersSvc := NewOfferService(OfferDependencies{
		OfferRepo:   f.offers,
		BookingRepo: f.bookings,
		MessageRepo: f.messages,
		ThreadRepo:  f.threads,
		AuditRepo:   f.audit,
		TxRunner:    &fakeTxRunner{},
		Metrics:     metricsSvc,
		Logger:      testLogger(),
		Now:         func() time.Time { return now },
	})
	f.svc = NewWebhookService(WebhookDependencies{
		Provider:    f.provider,
		Resolver:    resolver,
		Routing:     routing,
		Offers:      offersSvc,
		MessageRepo: f.messages,
		ThreadRepo:  f.threads,
		AuditRepo:   f.audit,
		Dedup:       f.dedup,
		Logger:      testLogger(),
		WebhookURL:  "https://hooks.example.com/webhooks/twilio/inbound",
		Now:         func() time.Time { return now },
	})
	return f
}

func (f *webhookFixture) provisionNumber() {
	f.numbers.getActiveByE164Func = func(ctx context.Context, e164 string) (*domain.MessageNumber, error) {
		return &domain.MessageNumber{
			ID: "num-1", OrgID: "org-1", E164: e164,
			Class: domain.NumberClassFrontDesk, Status: domain.NumberStatusActive,
		}, nil
	}
}

func inboundBody(sid, from, to, body string) string {
	form := url.Values{}
	form.Set("MessageSid", sid)
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)
	return form.Encode()
}

func TestHandleInboundInvalidSignature(t *testing.T) {
	f := newWebhookFixture(t)
	f.provider.verifyFunc = func(rawBody, signature, callbackURL string) bool { return false }

	result := f.svc.HandleInbound(context.Background(), inboundBody("SM1", "+15550001", "+15559999", "hi"), "bad-sig")

	assert.Empty(t, result.Reply)
	assert.Empty(t, f.messages.appended)
	entries := f.audit.byType(domain.AuditRoutingFailed)
	require.Len(t, entries, 1)
	assert.Equal(t, "invalid webhook signature", entries[0].Metadata["reason"])
	assert.NotEmpty(t, entries[0].Metadata["remediation"])
}

func TestHandleInboundUnknownDestinationNumber(t *testing.T) {
	f := newWebhookFixture(t)

	result := f.svc.HandleInbound(context.Background(), inboundBody("SM1", "+15550001", "+15550000", "hi"), "sig")

	assert.Empty(t, result.Reply)
	assert.Empty(t, f.messages.appended)
	entries := f.audit.byType(domain.AuditRoutingFailed)
	require.Len(t, entries, 1)
	assert.Equal(t, "destination number not provisioned", entries[0].Metadata["reason"])
}

func TestHandleInboundRoutesClientMessage(t *testing.T) {
	f := newWebhookFixture(t)
	f.provisionNumber()

	result := f.svc.HandleInbound(context.Background(), inboundBody("SM1", "+15550001", "+15559999", "Is Rex ok?"), "sig")

	assert.Empty(t, result.Reply)
	require.Len(t, f.messages.appended, 1)
	event := f.messages.appended[0]
	assert.Equal(t, domain.DirectionInbound, event.Direction)
	assert.Equal(t, domain.ActorClient, event.ActorType)
	require.NotNil(t, event.ProviderMessageSid)
	assert.Equal(t, "SM1", *event.ProviderMessageSid)
	assert.Equal(t, domain.DeliveryReceived, event.DeliveryStatus)

	assert.Len(t, f.threads.touched, 1)
	require.Len(t, f.threads.participants, 1)
	assert.Equal(t, domain.RoleClient, f.threads.participants[0].Role)
	assert.Len(t, f.audit.byType(domain.AuditRoutingEvaluated), 1)
	assert.Len(t, f.audit.byType(domain.AuditInboundReceived), 1)
}

func TestHandleInboundDuplicateDeliveryAbsorbed(t *testing.T) {
	f := newWebhookFixture(t)
	f.provisionNumber()
	body := inboundBody("SM1", "+15550001", "+15559999", "hello")

	first := f.svc.HandleInbound(context.Background(), body, "sig")
	second := f.svc.HandleInbound(context.Background(), body, "sig")

	assert.Empty(t, first.Reply)
	assert.Empty(t, second.Reply)
	// Only the first delivery persisted anything.
	assert.Len(t, f.messages.appended, 1)
	assert.Len(t, f.audit.byType(domain.AuditDuplicateAbsorbed), 1)
}

func TestHandleInboundDuplicateCaughtByStoreWhenCacheCold(t *testing.T) {
	f := newWebhookFixture(t)
	f.provisionNumber()
	// The cache has no memory of the sid (restart or outage), but the
	// event log already holds it.
	f.messages.existsFunc = func(ctx context.Context, orgID, providerMessageSid string) (bool, error) {
		return orgID == "org-1" && providerMessageSid == "SM1", nil
	}

	result := f.svc.HandleInbound(context.Background(), inboundBody("SM1", "+15550001", "+15559999", "hello"), "sig")

	assert.Empty(t, result.Reply)
	assert.Empty(t, f.messages.appended)
	assert.Len(t, f.audit.byType(domain.AuditDuplicateAbsorbed), 1)
}

func TestHandleInboundSitterYesDispatchesAccept(t *testing.T) {
	f := newWebhookFixture(t)
	f.provisionNumber()
	f.sitters.getByPhoneFunc = func(ctx context.Context, orgID, e164 string) (*domain.Sitter, error) {
		return &domain.Sitter{ID: "sitter-1", OrgID: orgID, E164: e164, Active: true}, nil
	}
	offer := sentOffer(f.now.Add(-2*time.Second), f.now.Add(58*time.Second))
	f.offers.findLatestAddressableFunc = func(ctx context.Context, orgID, sitterID string) (*domain.OfferEvent, error) {
		return offer, nil
	}
	f.bookings.getByIDFunc = func(ctx context.Context, id string) (*domain.Booking, error) {
		return &domain.Booking{ID: id, OrgID: "org-1", Status: domain.BookingStatusPending}, nil
	}

	result := f.svc.HandleInbound(context.Background(), inboundBody("SM1", "+15550001", "+15559999", " yes "), "sig")

	assert.Equal(t, "You got it! The booking is yours.", result.Reply)
	require.Len(t, f.offers.transitions, 1)
	assert.Equal(t, domain.OfferStatusAccepted, f.offers.transitions[0].Status)
	assert.Equal(t, "sitter-1", f.bookings.assigned["booking-1"])
	// A command never persists a routed message event for the keyword body.
	for _, event := range f.messages.appended {
		assert.NotEqual(t, domain.DirectionInbound, event.Direction)
	}
}

func TestHandleInboundSitterNoWithoutOfferIsInformational(t *testing.T) {
	f := newWebhookFixture(t)
	f.provisionNumber()
	f.sitters.getByPhoneFunc = func(ctx context.Context, orgID, e164 string) (*domain.Sitter, error) {
		return &domain.Sitter{ID: "sitter-1", OrgID: orgID, E164: e164, Active: true}, nil
	}

	result := f.svc.HandleInbound(context.Background(), inboundBody("SM1", "+15550001", "+15559999", "NO"), "sig")

	assert.Equal(t, "There is no open offer waiting for you right now.", result.Reply)
	assert.Empty(t, f.offers.transitions)
}

func TestHandleInboundSitterFreeTextIsRoutedNormally(t *testing.T) {
	f := newWebhookFixture(t)
	f.provisionNumber()
	f.sitters.getByPhoneFunc = func(ctx context.Context, orgID, e164 string) (*domain.Sitter, error) {
		return &domain.Sitter{ID: "sitter-1", OrgID: orgID, E164: e164, Active: true}, nil
	}

	result := f.svc.HandleInbound(context.Background(), inboundBody("SM1", "+15550001", "+15559999", "On my way"), "sig")

	assert.Empty(t, result.Reply)
	require.Len(t, f.messages.appended, 1)
	assert.Equal(t, domain.ActorSitter, f.messages.appended[0].ActorType)
}

func TestHandleInboundMalformedPayload(t *testing.T) {
	f := newWebhookFixture(t)

	result := f.svc.HandleInbound(context.Background(), "Body=hi", "sig")

	assert.Empty(t, result.Reply)
	entries := f.audit.byType(domain.AuditRoutingFailed)
	require.Len(t, entries, 1)
	assert.Equal(t, "malformed webhook payload", entries[0].Metadata["reason"])
}
