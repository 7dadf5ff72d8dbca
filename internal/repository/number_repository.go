package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// NumberRepository encapsulates message number persistence.
type NumberRepository interface {
	GetActiveByE164(ctx context.Context, e164 string) (*domain.MessageNumber, error)
	GetByID(ctx context.Context, id string) (*domain.MessageNumber, error)
}

type numberRepository struct {
	pool *pgxpool.Pool
}

// NewNumberRepository instantiates repository.
func NewNumberRepository(pool *pgxpool.Pool) NumberRepository {
	return &numberRepository{pool: pool}
}

const numberColumns = `id, org_id, e164, number_class, assigned_sitter_id, status, created_at, updated_at`

func (r *numberRepository) GetActiveByE164(ctx context.Context, e164 string) (*domain.MessageNumber, error) {
	query := `SELECT ` + numberColumns + ` FROM message_numbers WHERE e164=$1 AND status='active'`
	return r.fetchSingle(ctx, query, e164)
}

func (r *numberRepository) GetByID(ctx context.Context, id string) (*domain.MessageNumber, error) {
	query := `SELECT ` + numberColumns + ` FROM message_numbers WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *numberRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.MessageNumber, error) {
	var n domain.MessageNumber
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, arg).Scan(
		&n.ID,
		&n.OrgID,
		&n.E164,
		&n.Class,
		&n.AssignedSitterID,
		&n.Status,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}
