package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// SitterRepository resolves sitters by identifier or phone number.
type SitterRepository interface {
	GetByID(ctx context.Context, orgID, sitterID string) (*domain.Sitter, error)
	GetByPhone(ctx context.Context, orgID, e164 string) (*domain.Sitter, error)
	ListActive(ctx context.Context, orgID string) ([]domain.Sitter, error)
}

type sitterRepository struct {
	pool *pgxpool.Pool
}

// NewSitterRepository instantiates repository.
func NewSitterRepository(pool *pgxpool.Pool) SitterRepository {
	return &sitterRepository{pool: pool}
}

func (r *sitterRepository) GetByID(ctx context.Context, orgID, sitterID string) (*domain.Sitter, error) {
	const query = `
        SELECT id, org_id, name, e164, active, created_at
        FROM sitters
        WHERE org_id=$1 AND id=$2`
	return scanSitter(querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, sitterID))
}

func (r *sitterRepository) GetByPhone(ctx context.Context, orgID, e164 string) (*domain.Sitter, error) {
	const query = `
        SELECT id, org_id, name, e164, active, created_at
        FROM sitters
        WHERE org_id=$1 AND e164=$2 AND active=TRUE`
	return scanSitter(querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, e164))
}

func (r *sitterRepository) ListActive(ctx context.Context, orgID string) ([]domain.Sitter, error) {
	const query = `
        SELECT id, org_id, name, e164, active, created_at
        FROM sitters
        WHERE org_id=$1 AND active=TRUE
        ORDER BY name`
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sitters := make([]domain.Sitter, 0)
	for rows.Next() {
		var s domain.Sitter
		if err := rows.Scan(&s.ID, &s.OrgID, &s.Name, &s.E164, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		sitters = append(sitters, s)
	}
	return sitters, rows.Err()
}

func scanSitter(row pgx.Row) (*domain.Sitter, error) {
	var s domain.Sitter
	err := row.Scan(&s.ID, &s.OrgID, &s.Name, &s.E164, &s.Active, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ClientRepository resolves clients by identifier or phone number.
type ClientRepository interface {
	GetByID(ctx context.Context, orgID, clientID string) (*domain.Client, error)
	FindByPhone(ctx context.Context, orgID, e164 string) (*domain.Client, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository instantiates repository.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

func (r *clientRepository) GetByID(ctx context.Context, orgID, clientID string) (*domain.Client, error) {
	const query = `
        SELECT id, org_id, name, e164, created_at
        FROM clients
        WHERE org_id=$1 AND id=$2`
	return scanClient(querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, clientID))
}

func (r *clientRepository) FindByPhone(ctx context.Context, orgID, e164 string) (*domain.Client, error) {
	const query = `
        SELECT id, org_id, name, e164, created_at
        FROM clients
        WHERE org_id=$1 AND e164=$2`
	return scanClient(querierFrom(ctx, r.pool).QueryRow(ctx, query, orgID, e164))
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.E164, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// OperatorRepository backs dashboard authentication.
type OperatorRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
	GetByID(ctx context.Context, operatorID string) (*domain.Operator, error)
}

type operatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository instantiates repository.
func NewOperatorRepository(pool *pgxpool.Pool) OperatorRepository {
	return &operatorRepository{pool: pool}
}

func (r *operatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	const query = `
        SELECT id, org_id, name, email, password_hash, created_at, updated_at
        FROM operators
        WHERE email=$1`
	return scanOperator(querierFrom(ctx, r.pool).QueryRow(ctx, query, email))
}

func (r *operatorRepository) GetByID(ctx context.Context, operatorID string) (*domain.Operator, error) {
	const query = `
        SELECT id, org_id, name, email, password_hash, created_at, updated_at
        FROM operators
        WHERE id=$1`
	return scanOperator(querierFrom(ctx, r.pool).QueryRow(ctx, query, operatorID))
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var o domain.Operator
	err := row.Scan(&o.ID, &o.OrgID, &o.Name, &o.Email, &o.PasswordHash, &o.CreatedAt, &o.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
