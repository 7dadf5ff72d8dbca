package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// AuditRepository is the append-only operational log store.
type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	ListByOrg(ctx context.Context, orgID string, eventType string, limit int) ([]domain.AuditEvent, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	const query = `
        INSERT INTO audit_events (org_id, event_type, actor_type, actor_id, entity_type, entity_id, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	meta, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	// Ingress failures that never resolved an org are stored org-less.
	var orgID *string
	if event.OrgID != "" {
		orgID = &event.OrgID
	}
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		orgID,
		event.EventType,
		event.ActorType,
		event.ActorID,
		event.EntityType,
		event.EntityID,
		meta,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *auditRepository) ListByOrg(ctx context.Context, orgID string, eventType string, limit int) ([]domain.AuditEvent, error) {
	const query = `
        SELECT id, org_id, event_type, actor_type, actor_id, entity_type, entity_id, metadata, created_at
        FROM audit_events
        WHERE org_id=$1 AND ($2 = '' OR event_type=$2)
        ORDER BY created_at DESC
        LIMIT $3`
	if limit <= 0 {
		limit = 100
	}
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, orgID, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.AuditEvent, 0)
	for rows.Next() {
		var e domain.AuditEvent
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OrgID, &e.EventType, &e.ActorType, &e.ActorID, &e.EntityType, &e.EntityID, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
