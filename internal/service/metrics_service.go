package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/domain"
	"github.com/snoutos/message-router/internal/repository"
)

// metricsWindowSpan is the rolling lookback for sitter responsiveness.
const metricsWindowSpan = 7 * 24 * time.Hour

// MetricsService recomputes rolling sitter responsiveness windows from
// offer history. Recompute is idempotent: the window row is replaced, not
// accumulated.
type MetricsService struct {
	offers  repository.OfferRepository
	metrics repository.MetricsRepository
	logger  *zap.Logger
}

// NewMetricsService constructs the service.
func NewMetricsService(offers repository.OfferRepository, metrics repository.MetricsRepository, logger *zap.Logger) *MetricsService {
	return &MetricsService{offers: offers, metrics: metrics, logger: logger}
}

// Recompute rebuilds the weekly window for one sitter as of `at`. Offers
// marked excluded never count. With zero offers in the window all rates
// and response aggregates are nil, never zero.
func (s *MetricsService) Recompute(ctx context.Context, orgID, sitterID string, at time.Time) (*domain.SitterMetricsWindow, error) {
	windowStart := at.Add(-metricsWindowSpan)
	offers, err := s.offers.ListInWindow(ctx, orgID, sitterID, windowStart, at)
	if err != nil {
		return nil, err
	}

	window := &domain.SitterMetricsWindow{
		OrgID:       orgID,
		SitterID:    sitterID,
		WindowStart: windowStart,
		WindowEnd:   at,
		WindowType:  domain.WindowTypeWeekly7d,
	}

	var accepted, declined, expired int
	var responseTimes []float64
	var lastResponded *time.Time

	for _, offer := range offers {
		status := effectiveStatus(offer, at)
		switch status {
		case domain.OfferStatusAccepted:
			accepted++
		case domain.OfferStatusDeclined:
			declined++
		case domain.OfferStatusExpired:
			expired++
		default:
			continue
		}

		respondedAt := responseTimestamp(offer, status)
		if respondedAt == nil {
			continue
		}
		responseTimes = append(responseTimes, respondedAt.Sub(offer.OfferedAt).Seconds())
		if lastResponded == nil || respondedAt.After(*lastResponded) {
			lastResponded = respondedAt
		}
	}

	total := len(offers)
	if total > 0 {
		window.OfferAcceptRate = ratio(accepted, total)
		window.OfferDeclineRate = ratio(declined, total)
		window.OfferExpireRate = ratio(expired, total)
	}
	if len(responseTimes) > 0 {
		window.AvgResponseSeconds = floatPtr(mean(responseTimes))
		window.MedianResponseSeconds = floatPtr(median(responseTimes))
	}
	window.LastOfferRespondedAt = lastResponded

	if err := s.metrics.Upsert(ctx, window); err != nil {
		return nil, err
	}
	return window, nil
}

// RecomputeAsync runs Recompute and only logs failures. Offer processing
// must not fail because an aggregate could not be refreshed.
func (s *MetricsService) RecomputeAsync(ctx context.Context, orgID, sitterID string, at time.Time) {
	if _, err := s.Recompute(ctx, orgID, sitterID, at); err != nil {
		s.logger.Warn("sitter metrics recompute failed",
			zap.String("org_id", orgID),
			zap.String("sitter_id", sitterID),
			zap.Error(err))
	}
}

// Get returns the stored weekly window for a sitter, nil when never
// computed.
func (s *MetricsService) Get(ctx context.Context, orgID, sitterID string) (*domain.SitterMetricsWindow, error) {
	return s.metrics.Get(ctx, orgID, sitterID, domain.WindowTypeWeekly7d)
}

// effectiveStatus resolves what an offer counts as at `at`. Rows written
// before terminal statuses were stamped carry only timestamps, so a sent
// row with acceptedAt counts as accepted, one with declinedAt counts as
// declined, and an overdue sent row counts as expired even when the sweep
// has not rewritten it yet.
func effectiveStatus(offer domain.OfferEvent, at time.Time) domain.OfferStatus {
	if offer.Terminal() {
		return offer.Status
	}
	switch {
	case offer.AcceptedAt != nil:
		return domain.OfferStatusAccepted
	case offer.DeclinedAt != nil:
		return domain.OfferStatusDeclined
	case offer.ExpiredAt(at):
		return domain.OfferStatusExpired
	}
	return domain.OfferStatusSent
}

// responseTimestamp returns when the sitter actually answered. Expiry is
// not a response: expired offers contribute to rates but never to
// response-time aggregates.
func responseTimestamp(offer domain.OfferEvent, status domain.OfferStatus) *time.Time {
	switch status {
	case domain.OfferStatusAccepted:
		if offer.AcceptedAt != nil {
			return offer.AcceptedAt
		}
	case domain.OfferStatusDeclined:
		if offer.DeclinedAt != nil {
			return offer.DeclinedAt
		}
	}
	return nil
}

func ratio(part, total int) *float64 {
	v := float64(part) / float64(total)
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
