package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// OfferTransition is the single write that moves an offer out of sent.
// The guard `WHERE status='sent'` makes concurrent duplicates lose cleanly:
// the second writer affects zero rows.
type OfferTransition struct {
	OfferID       string
	Status        domain.OfferStatus
	AcceptedAt    *time.Time
	DeclinedAt    *time.Time
	DeclineReason *domain.DeclineReason
}

// OfferRepository encapsulates offer event persistence.
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.OfferEvent) error
	GetByID(ctx context.Context, id string) (*domain.OfferEvent, error)
	// FindLatestAddressable returns the most-recently-offered sent,
	// non-excluded offer for the (org, sitter) pair, or nil.
	FindLatestAddressable(ctx context.Context, orgID, sitterID string) (*domain.OfferEvent, error)
	// Transition applies the terminal write; reports false when the offer
	// was no longer in sent state.
	Transition(ctx context.Context, t OfferTransition) (bool, error)
	ListInWindow(ctx context.Context, orgID, sitterID string, from, to time.Time) ([]domain.OfferEvent, error)
	ListExpiredDue(ctx context.Context, now time.Time, limit int) ([]domain.OfferEvent, error)
}

type offerRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository instantiates repository.
func NewOfferRepository(pool *pgxpool.Pool) OfferRepository {
	return &offerRepository{pool: pool}
}

const offerColumns = `id, org_id, sitter_id, booking_id, status, offered_at, expires_at,
               accepted_at, declined_at, decline_reason, excluded, created_at`

func (r *offerRepository) Create(ctx context.Context, offer *domain.OfferEvent) error {
	const query = `
        INSERT INTO offer_events (org_id, sitter_id, booking_id, status, offered_at, expires_at, excluded)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		offer.OrgID,
		offer.SitterID,
		offer.BookingID,
		offer.Status,
		offer.OfferedAt,
		offer.ExpiresAt,
		offer.Excluded,
	).Scan(&offer.ID, &offer.CreatedAt)
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*domain.OfferEvent, error) {
	query := `SELECT ` + offerColumns + ` FROM offer_events WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *offerRepository) FindLatestAddressable(ctx context.Context, orgID, sitterID string) (*domain.OfferEvent, error) {
	query := `SELECT ` + offerColumns + `
        FROM offer_events
        WHERE org_id=$1 AND sitter_id=$2 AND status='sent' AND excluded=FALSE
        ORDER BY offered_at DESC
        LIMIT 1`
	offer, err := r.fetchSingle(ctx, query, orgID, sitterID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return offer, err
}

func (r *offerRepository) Transition(ctx context.Context, t OfferTransition) (bool, error) {
	const query = `
        UPDATE offer_events
        SET status=$1, accepted_at=$2, declined_at=$3, decline_reason=$4
        WHERE id=$5 AND status='sent'`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		t.Status,
		t.AcceptedAt,
		t.DeclinedAt,
		t.DeclineReason,
		t.OfferID,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *offerRepository) ListInWindow(ctx context.Context, orgID, sitterID string, from, to time.Time) ([]domain.OfferEvent, error) {
	query := `SELECT ` + offerColumns + `
        FROM offer_events
        WHERE org_id=$1 AND sitter_id=$2 AND offered_at >= $3 AND offered_at <= $4 AND excluded=FALSE
        ORDER BY offered_at ASC`
	return r.list(ctx, query, orgID, sitterID, from, to)
}

func (r *offerRepository) ListExpiredDue(ctx context.Context, now time.Time, limit int) ([]domain.OfferEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + offerColumns + `
        FROM offer_events
        WHERE status='sent' AND expires_at < $1
        ORDER BY expires_at ASC
        LIMIT $2`
	return r.list(ctx, query, now, limit)
}

func (r *offerRepository) list(ctx context.Context, query string, args ...any) ([]domain.OfferEvent, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OfferEvent
	for rows.Next() {
		var o domain.OfferEvent
		if err := rows.Scan(
			&o.ID,
			&o.OrgID,
			&o.SitterID,
			&o.BookingID,
			&o.Status,
			&o.OfferedAt,
			&o.ExpiresAt,
			&o.AcceptedAt,
			&o.DeclinedAt,
			&o.DeclineReason,
			&o.Excluded,
			&o.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *offerRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.OfferEvent, error) {
	var o domain.OfferEvent
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&o.ID,
		&o.OrgID,
		&o.SitterID,
		&o.BookingID,
		&o.Status,
		&o.OfferedAt,
		&o.ExpiresAt,
		&o.AcceptedAt,
		&o.DeclinedAt,
		&o.DeclineReason,
		&o.Excluded,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
