package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// ErrBookingTaken marks an assignment rejected because the booking row
// already carries a different sitter.
var ErrBookingTaken = errors.New("booking assigned to another sitter")

// BookingRepository exposes the booking operations the offer processor
// needs; booking CRUD itself lives outside this core.
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	AssignSitter(ctx context.Context, bookingID, sitterID string) error
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository instantiates repository.
func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	const query = `
        SELECT id, org_id, client_id, sitter_id, service, status, start_at, end_at, created_at, updated_at
        FROM bookings WHERE id=$1`
	var b domain.Booking
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.OrgID,
		&b.ClientID,
		&b.SitterID,
		&b.Service,
		&b.Status,
		&b.StartAt,
		&b.EndAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

// AssignSitter writes the assignment only while the booking is still free
// or already held by the same sitter, so two concurrent accepts on
// different offers for one booking cannot both win.
func (r *bookingRepository) AssignSitter(ctx context.Context, bookingID, sitterID string) error {
	const query = `
        UPDATE bookings SET sitter_id=$1, status='confirmed', updated_at=NOW()
        WHERE id=$2 AND (sitter_id IS NULL OR sitter_id=$1)`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query, sitterID, bookingID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBookingTaken
	}
	return nil
}
