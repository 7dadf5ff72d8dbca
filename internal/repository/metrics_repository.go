package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// MetricsRepository encapsulates sitter metrics window persistence.
// Windows are upserted in place by (org, sitter, window type), never
// appended.
type MetricsRepository interface {
	Upsert(ctx context.Context, window *domain.SitterMetricsWindow) error
	Get(ctx context.Context, orgID, sitterID, windowType string) (*domain.SitterMetricsWindow, error)
}

type metricsRepository struct {
	pool *pgxpool.Pool
}

// NewMetricsRepository instantiates repository.
func NewMetricsRepository(pool *pgxpool.Pool) MetricsRepository {
	return &metricsRepository{pool: pool}
}

func (r *metricsRepository) Upsert(ctx context.Context, window *domain.SitterMetricsWindow) error {
	const query = `
        INSERT INTO sitter_metrics_windows (org_id, sitter_id, window_start, window_end, window_type,
            avg_response_seconds, median_response_seconds, offer_accept_rate, offer_decline_rate,
            offer_expire_rate, last_offer_responded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (org_id, sitter_id, window_type) DO UPDATE SET
            window_start=EXCLUDED.window_start,
            window_end=EXCLUDED.window_end,
            avg_response_seconds=EXCLUDED.avg_response_seconds,
            median_response_seconds=EXCLUDED.median_response_seconds,
            offer_accept_rate=EXCLUDED.offer_accept_rate,
            offer_decline_rate=EXCLUDED.offer_decline_rate,
            offer_expire_rate=EXCLUDED.offer_expire_rate,
            last_offer_responded_at=EXCLUDED.last_offer_responded_at,
            updated_at=NOW()
        RETURNING id, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		window.OrgID,
		window.SitterID,
		window.WindowStart,
		window.WindowEnd,
		window.WindowType,
		window.AvgResponseSeconds,
		window.MedianResponseSeconds,
		window.OfferAcceptRate,
		window.OfferDeclineRate,
		window.OfferExpireRate,
		window.LastOfferRespondedAt,
	).Scan(&window.ID, &window.UpdatedAt)
}

func (r *metricsRepository) Get(ctx context.Context, orgID, sitterID, windowType string) (*domain.SitterMetricsWindow, error) {
	const query = `
        SELECT id, org_id, sitter_id, window_start, window_end, window_type,
               avg_response_seconds, median_response_seconds, offer_accept_rate,
               offer_decline_rate, offer_expire_rate, last_offer_responded_at, updated_at
        FROM sitter_metrics_windows
        WHERE org_id=$1 AND sitter_id=$2 AND window_type=$3`
	var w domain.SitterMetricsWindow
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, sitterID, windowType).Scan(
		&w.ID,
		&w.OrgID,
		&w.SitterID,
		&w.WindowStart,
		&w.WindowEnd,
		&w.WindowType,
		&w.AvgResponseSeconds,
		&w.MedianResponseSeconds,
		&w.OfferAcceptRate,
		&w.OfferDeclineRate,
		&w.OfferExpireRate,
		&w.LastOfferRespondedAt,
		&w.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
