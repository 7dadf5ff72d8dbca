package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoutos/message-router/internal/domain"
)

func resolvedOffer(id string, status domain.OfferStatus, offeredAt time.Time, respondedAfter time.Duration) domain.OfferEvent {
	offer := domain.OfferEvent{
		ID:        id,
		OrgID:     "org-1",
		SitterID:  "sitter-1",
		BookingID: "booking-" + id,
		Status:    status,
		OfferedAt: offeredAt,
		ExpiresAt: offeredAt.Add(time.Hour),
	}
	respondedAt := offeredAt.Add(respondedAfter)
	switch status {
	case domain.OfferStatusAccepted:
		offer.AcceptedAt = &respondedAt
	case domain.OfferStatusDeclined:
		reason := domain.DeclineReasonDeclined
		offer.DeclinedAt = &respondedAt
		offer.DeclineReason = &reason
	case domain.OfferStatusExpired:
		reason := domain.DeclineReasonExpired
		offer.DeclinedAt = &respondedAt
		offer.DeclineReason = &reason
	}
	return offer
}

func TestRecomputeRatesAndResponseStats(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	base := at.Add(-24 * time.Hour)
	offers := &fakeOfferRepo{
		listInWindowFunc: func(ctx context.Context, orgID, sitterID string, from, to time.Time) ([]domain.OfferEvent, error) {
			assert.Equal(t, at.Add(-7*24*time.Hour), from)
			assert.Equal(t, at, to)
			return []domain.OfferEvent{
				resolvedOffer("o1", domain.OfferStatusAccepted, base, 10*time.Second),
				resolvedOffer("o2", domain.OfferStatusAccepted, base.Add(time.Hour), 20*time.Second),
				resolvedOffer("o3", domain.OfferStatusDeclined, base.Add(2*time.Hour), 60*time.Second),
				resolvedOffer("o4", domain.OfferStatusExpired, base.Add(3*time.Hour), time.Hour),
			}, nil
		},
	}
	store := &fakeMetricsRepo{}
	svc := NewMetricsService(offers, store, testLogger())

	window, err := svc.Recompute(context.Background(), "org-1", "sitter-1", at)
	require.NoError(t, err)

	require.NotNil(t, window.OfferAcceptRate)
	require.NotNil(t, window.OfferDeclineRate)
	require.NotNil(t, window.OfferExpireRate)
	assert.InDelta(t, 0.5, *window.OfferAcceptRate, 1e-9)
	assert.InDelta(t, 0.25, *window.OfferDeclineRate, 1e-9)
	assert.InDelta(t, 0.25, *window.OfferExpireRate, 1e-9)
	assert.LessOrEqual(t, *window.OfferAcceptRate+*window.OfferDeclineRate+*window.OfferExpireRate, 1.0)

	// Expiry is not a response: aggregates cover o1..o3 only.
	require.NotNil(t, window.AvgResponseSeconds)
	require.NotNil(t, window.MedianResponseSeconds)
	assert.InDelta(t, 30.0, *window.AvgResponseSeconds, 1e-9)
	assert.InDelta(t, 20.0, *window.MedianResponseSeconds, 1e-9)

	require.NotNil(t, window.LastOfferRespondedAt)
	assert.Equal(t, base.Add(2*time.Hour).Add(60*time.Second), *window.LastOfferRespondedAt)
	require.Len(t, store.upserted, 1)
}

func TestRecomputeEmptyWindowHasNilAggregates(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewMetricsService(&fakeOfferRepo{}, &fakeMetricsRepo{}, testLogger())

	window, err := svc.Recompute(context.Background(), "org-1", "sitter-1", at)
	require.NoError(t, err)

	assert.Nil(t, window.OfferAcceptRate)
	assert.Nil(t, window.OfferDeclineRate)
	assert.Nil(t, window.OfferExpireRate)
	assert.Nil(t, window.AvgResponseSeconds)
	assert.Nil(t, window.MedianResponseSeconds)
	assert.Nil(t, window.LastOfferRespondedAt)
	assert.Equal(t, domain.WindowTypeWeekly7d, window.WindowType)
}

func TestRecomputePendingOffersCountTowardNothing(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	offers := &fakeOfferRepo{
		listInWindowFunc: func(ctx context.Context, orgID, sitterID string, from, to time.Time) ([]domain.OfferEvent, error) {
			return []domain.OfferEvent{
				{ID: "o1", Status: domain.OfferStatusSent, OfferedAt: at.Add(-time.Hour), ExpiresAt: at.Add(time.Hour)},
				resolvedOffer("o2", domain.OfferStatusAccepted, at.Add(-2*time.Hour), 5*time.Second),
			}, nil
		},
	}
	svc := NewMetricsService(offers, &fakeMetricsRepo{}, testLogger())

	window, err := svc.Recompute(context.Background(), "org-1", "sitter-1", at)
	require.NoError(t, err)

	// The still-open offer dilutes the accept rate but is not a response.
	require.NotNil(t, window.OfferAcceptRate)
	assert.InDelta(t, 0.5, *window.OfferAcceptRate, 1e-9)
	require.NotNil(t, window.OfferExpireRate)
	assert.InDelta(t, 0.0, *window.OfferExpireRate, 1e-9)
	require.NotNil(t, window.AvgResponseSeconds)
	assert.InDelta(t, 5.0, *window.AvgResponseSeconds, 1e-9)
}

func TestRecomputeLegacyRowsCountByTimestamps(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	acceptedAt := at.Add(-2 * time.Hour).Add(40 * time.Second)
	offers := &fakeOfferRepo{
		listInWindowFunc: func(ctx context.Context, orgID, sitterID string, from, to time.Time) ([]domain.OfferEvent, error) {
			// Rows predating terminal-status stamping: still `sent`, but
			// one carries an accept timestamp and one is long overdue.
			return []domain.OfferEvent{
				{ID: "o1", Status: domain.OfferStatusSent, OfferedAt: at.Add(-2 * time.Hour), ExpiresAt: at.Add(-time.Hour), AcceptedAt: &acceptedAt},
				{ID: "o2", Status: domain.OfferStatusSent, OfferedAt: at.Add(-3 * time.Hour), ExpiresAt: at.Add(-time.Hour)},
			}, nil
		},
	}
	svc := NewMetricsService(offers, &fakeMetricsRepo{}, testLogger())

	window, err := svc.Recompute(context.Background(), "org-1", "sitter-1", at)
	require.NoError(t, err)

	require.NotNil(t, window.OfferAcceptRate)
	require.NotNil(t, window.OfferExpireRate)
	assert.InDelta(t, 0.5, *window.OfferAcceptRate, 1e-9)
	assert.InDelta(t, 0.5, *window.OfferExpireRate, 1e-9)
	require.NotNil(t, window.OfferDeclineRate)
	assert.InDelta(t, 0.0, *window.OfferDeclineRate, 1e-9)

	// The accept timestamp still feeds response aggregates; the overdue
	// row never does.
	require.NotNil(t, window.AvgResponseSeconds)
	assert.InDelta(t, 40.0, *window.AvgResponseSeconds, 1e-9)
	require.NotNil(t, window.LastOfferRespondedAt)
	assert.Equal(t, acceptedAt, *window.LastOfferRespondedAt)
}

func TestMedianEvenCount(t *testing.T) {
	assert.InDelta(t, 15.0, median([]float64{10, 20}), 1e-9)
	assert.InDelta(t, 20.0, median([]float64{10, 20, 30}), 1e-9)
	assert.InDelta(t, 25.0, median([]float64{40, 10, 20, 30}), 1e-9)
}
