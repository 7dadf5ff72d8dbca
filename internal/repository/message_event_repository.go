package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// ErrDuplicateMessage marks an insert rejected by the per-org provider
// message sid uniqueness constraint. Callers treat it as "already
// processed", not a failure.
var ErrDuplicateMessage = errors.New("message event already recorded")

// uniqueViolation is the Postgres error code for constraint 23505.
const uniqueViolation = "23505"

// MessageEventRepository encapsulates the append-only message event log.
type MessageEventRepository interface {
	Append(ctx context.Context, event *domain.MessageEvent) error
	GetByID(ctx context.Context, id string) (*domain.MessageEvent, error)
	ExistsByProviderSid(ctx context.Context, orgID, providerMessageSid string) (bool, error)
	ListByThread(ctx context.Context, threadID string, limit int) ([]domain.MessageEvent, error)
}

type messageEventRepository struct {
	pool *pgxpool.Pool
}

// NewMessageEventRepository instantiates repository.
func NewMessageEventRepository(pool *pgxpool.Pool) MessageEventRepository {
	return &messageEventRepository{pool: pool}
}

const messageEventColumns = `id, org_id, thread_id, direction, actor_type, body, provider_message_sid,
               delivery_status, responsible_sitter_id, supersedes_event_id, created_at`

func (r *messageEventRepository) Append(ctx context.Context, event *domain.MessageEvent) error {
	const query = `
        INSERT INTO message_events (org_id, thread_id, direction, actor_type, body,
            provider_message_sid, delivery_status, responsible_sitter_id, supersedes_event_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query,
		event.OrgID,
		event.ThreadID,
		event.Direction,
		event.ActorType,
		event.Body,
		event.ProviderMessageSid,
		event.DeliveryStatus,
		event.ResponsibleSitterID,
		event.SupersedesEventID,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateMessage
		}
		return err
	}
	return nil
}

func (r *messageEventRepository) GetByID(ctx context.Context, id string) (*domain.MessageEvent, error) {
	query := `SELECT ` + messageEventColumns + ` FROM message_events WHERE id=$1`
	var e domain.MessageEvent
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.OrgID,
		&e.ThreadID,
		&e.Direction,
		&e.ActorType,
		&e.Body,
		&e.ProviderMessageSid,
		&e.DeliveryStatus,
		&e.ResponsibleSitterID,
		&e.SupersedesEventID,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *messageEventRepository) ExistsByProviderSid(ctx context.Context, orgID, providerMessageSid string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM message_events WHERE org_id=$1 AND provider_message_sid=$2)`
	var exists bool
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, providerMessageSid).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *messageEventRepository) ListByThread(ctx context.Context, threadID string, limit int) ([]domain.MessageEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + messageEventColumns + `
        FROM message_events WHERE thread_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MessageEvent
	for rows.Next() {
		var e domain.MessageEvent
		if err := rows.Scan(
			&e.ID,
			&e.OrgID,
			&e.ThreadID,
			&e.Direction,
			&e.ActorType,
			&e.Body,
			&e.ProviderMessageSid,
			&e.DeliveryStatus,
			&e.ResponsibleSitterID,
			&e.SupersedesEventID,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
