package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// ThreadLookup is the thread resolution key: non-closed/archived threads
// matching (orgId, clientId, assignedSitterId, scope).
type ThreadLookup struct {
	OrgID            string
	ClientID         *string
	AssignedSitterID *string
	Scope            domain.ThreadScope
}

// ThreadRepository encapsulates thread and participant persistence.
type ThreadRepository interface {
	Create(ctx context.Context, thread *domain.Thread) error
	GetByID(ctx context.Context, id string) (*domain.Thread, error)
	FindOpen(ctx context.Context, lookup ThreadLookup) (*domain.Thread, error)
	FindLatestForSitter(ctx context.Context, orgID, sitterID string) (*domain.Thread, error)
	TouchActivity(ctx context.Context, threadID string, at time.Time, inbound bool) error
	AddParticipant(ctx context.Context, p *domain.Participant) error
	ListParticipants(ctx context.Context, threadID string) ([]domain.Participant, error)
}

type threadRepository struct {
	pool *pgxpool.Pool
}

// NewThreadRepository instantiates repository.
func NewThreadRepository(pool *pgxpool.Pool) ThreadRepository {
	return &threadRepository{pool: pool}
}

const threadColumns = `id, org_id, client_id, assigned_sitter_id, scope, status, masked_number_e164,
               last_message_at, last_inbound_at, created_at, updated_at`

func (r *threadRepository) Create(ctx context.Context, thread *domain.Thread) error {
	const query = `
        INSERT INTO threads (org_id, client_id, assigned_sitter_id, scope, status, masked_number_e164)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		thread.OrgID,
		thread.ClientID,
		thread.AssignedSitterID,
		thread.Scope,
		thread.Status,
		thread.MaskedNumberE164,
	).Scan(&thread.ID, &thread.CreatedAt, &thread.UpdatedAt)
}

func (r *threadRepository) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *threadRepository) FindOpen(ctx context.Context, lookup ThreadLookup) (*domain.Thread, error) {
	query := `SELECT ` + threadColumns + `
        FROM threads
        WHERE org_id=$1
          AND client_id IS NOT DISTINCT FROM $2
          AND assigned_sitter_id IS NOT DISTINCT FROM $3
          AND scope=$4
          AND status NOT IN ('closed','archived')
        ORDER BY created_at DESC
        LIMIT 1`
	return r.fetchSingle(ctx, query, lookup.OrgID, lookup.ClientID, lookup.AssignedSitterID, lookup.Scope)
}

func (r *threadRepository) FindLatestForSitter(ctx context.Context, orgID, sitterID string) (*domain.Thread, error) {
	query := `SELECT ` + threadColumns + `
        FROM threads
        WHERE org_id=$1
          AND assigned_sitter_id=$2
          AND scope IN ('client_booking','client_general')
          AND status NOT IN ('closed','archived')
        ORDER BY last_message_at DESC NULLS LAST
        LIMIT 1`
	return r.fetchSingle(ctx, query, orgID, sitterID)
}

func (r *threadRepository) TouchActivity(ctx context.Context, threadID string, at time.Time, inbound bool) error {
	const query = `
        UPDATE threads
        SET last_message_at=$1,
            last_inbound_at=CASE WHEN $2 THEN $1 ELSE last_inbound_at END,
            updated_at=NOW()
        WHERE id=$3`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query, at, inbound, threadID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *threadRepository) AddParticipant(ctx context.Context, p *domain.Participant) error {
	const query = `
        INSERT INTO participants (thread_id, role, e164)
        VALUES ($1,$2,$3)
        ON CONFLICT (thread_id, role, e164) DO NOTHING
        RETURNING id, created_at`
	err := querierFrom(ctx, r.pool).QueryRow(ctx, query, p.ThreadID, p.Role, p.E164).
		Scan(&p.ID, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		// Conflict hit: the (thread, role, number) triple already exists
		// and is immutable.
		return nil
	}
	return err
}

func (r *threadRepository) ListParticipants(ctx context.Context, threadID string) ([]domain.Participant, error) {
	const query = `SELECT id, thread_id, role, e164, created_at FROM participants WHERE thread_id=$1 ORDER BY created_at`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.ThreadID, &p.Role, &p.E164, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *threadRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Thread, error) {
	var t domain.Thread
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.OrgID,
		&t.ClientID,
		&t.AssignedSitterID,
		&t.Scope,
		&t.Status,
		&t.MaskedNumberE164,
		&t.LastMessageAt,
		&t.LastInboundAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
