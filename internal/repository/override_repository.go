package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// OverrideRepository encapsulates routing override persistence. Removal is
// soft (removed_at) so historical decisions stay explainable.
type OverrideRepository interface {
	Create(ctx context.Context, override *domain.RoutingOverride) error
	Remove(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.RoutingOverride, error)
	FindActive(ctx context.Context, threadID string, at time.Time) (*domain.RoutingOverride, error)
	ListByThread(ctx context.Context, threadID string) ([]domain.RoutingOverride, error)
}

type overrideRepository struct {
	pool *pgxpool.Pool
}

// NewOverrideRepository instantiates repository.
func NewOverrideRepository(pool *pgxpool.Pool) OverrideRepository {
	return &overrideRepository{pool: pool}
}

const overrideColumns = `id, org_id, thread_id, target, target_id, starts_at, ends_at, reason, removed_at, created_at`

func (r *overrideRepository) Create(ctx context.Context, override *domain.RoutingOverride) error {
	const query = `
        INSERT INTO routing_overrides (org_id, thread_id, target, target_id, starts_at, ends_at, reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		override.OrgID,
		override.ThreadID,
		override.Target,
		override.TargetID,
		override.StartsAt,
		override.EndsAt,
		override.Reason,
	).Scan(&override.ID, &override.CreatedAt)
}

func (r *overrideRepository) Remove(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE routing_overrides SET removed_at=$1 WHERE id=$2 AND removed_at IS NULL`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *overrideRepository) GetByID(ctx context.Context, id string) (*domain.RoutingOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM routing_overrides WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *overrideRepository) FindActive(ctx context.Context, threadID string, at time.Time) (*domain.RoutingOverride, error) {
	query := `SELECT ` + overrideColumns + `
        FROM routing_overrides
        WHERE thread_id=$1
          AND removed_at IS NULL
          AND starts_at <= $2
          AND (ends_at IS NULL OR ends_at > $2)
        ORDER BY created_at DESC
        LIMIT 1`
	override, err := r.fetchSingle(ctx, query, threadID, at)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return override, err
}

func (r *overrideRepository) ListByThread(ctx context.Context, threadID string) ([]domain.RoutingOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM routing_overrides WHERE thread_id=$1 ORDER BY created_at DESC`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RoutingOverride
	for rows.Next() {
		var o domain.RoutingOverride
		if err := rows.Scan(
			&o.ID,
			&o.OrgID,
			&o.ThreadID,
			&o.Target,
			&o.TargetID,
			&o.StartsAt,
			&o.EndsAt,
			&o.Reason,
			&o.RemovedAt,
			&o.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *overrideRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.RoutingOverride, error) {
	var o domain.RoutingOverride
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&o.ID,
		&o.OrgID,
		&o.ThreadID,
		&o.Target,
		&o.TargetID,
		&o.StartsAt,
		&o.EndsAt,
		&o.Reason,
		&o.RemovedAt,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
