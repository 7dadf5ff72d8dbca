package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snoutos/message-router/internal/domain"
)

// WindowRepository encapsulates assignment window persistence.
type WindowRepository interface {
	Create(ctx context.Context, window *domain.AssignmentWindow) error
	Update(ctx context.Context, window *domain.AssignmentWindow) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.AssignmentWindow, error)
	ListByThread(ctx context.Context, threadID string) ([]domain.AssignmentWindow, error)
	ListActiveAt(ctx context.Context, threadID string, at time.Time) ([]domain.AssignmentWindow, error)
}

type windowRepository struct {
	pool *pgxpool.Pool
}

// NewWindowRepository instantiates repository.
func NewWindowRepository(pool *pgxpool.Pool) WindowRepository {
	return &windowRepository{pool: pool}
}

const windowColumns = `id, org_id, thread_id, sitter_id, starts_at, ends_at, booking_ref, created_at, updated_at`

func (r *windowRepository) Create(ctx context.Context, window *domain.AssignmentWindow) error {
	const query = `
        INSERT INTO assignment_windows (org_id, thread_id, sitter_id, starts_at, ends_at, booking_ref)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return querierFrom(ctx, r.pool).QueryRow(ctx, query,
		window.OrgID,
		window.ThreadID,
		window.SitterID,
		window.StartsAt,
		window.EndsAt,
		window.BookingRef,
	).Scan(&window.ID, &window.CreatedAt, &window.UpdatedAt)
}

func (r *windowRepository) Update(ctx context.Context, window *domain.AssignmentWindow) error {
	const query = `
        UPDATE assignment_windows
        SET sitter_id=$1, starts_at=$2, ends_at=$3, booking_ref=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, query,
		window.SitterID,
		window.StartsAt,
		window.EndsAt,
		window.BookingRef,
		window.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *windowRepository) Delete(ctx context.Context, id string) error {
	cmd, err := querierFrom(ctx, r.pool).Exec(ctx, `DELETE FROM assignment_windows WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *windowRepository) GetByID(ctx context.Context, id string) (*domain.AssignmentWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM assignment_windows WHERE id=$1`
	var w domain.AssignmentWindow
	if err := querierFrom(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&w.ID,
		&w.OrgID,
		&w.ThreadID,
		&w.SitterID,
		&w.StartsAt,
		&w.EndsAt,
		&w.BookingRef,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *windowRepository) ListByThread(ctx context.Context, threadID string) ([]domain.AssignmentWindow, error) {
	query := `SELECT ` + windowColumns + ` FROM assignment_windows WHERE thread_id=$1 ORDER BY starts_at ASC`
	return r.list(ctx, query, threadID)
}

func (r *windowRepository) ListActiveAt(ctx context.Context, threadID string, at time.Time) ([]domain.AssignmentWindow, error) {
	// Half-open bounds: a window covers [starts_at, ends_at).
	query := `SELECT ` + windowColumns + `
        FROM assignment_windows
        WHERE thread_id=$1 AND starts_at <= $2 AND ends_at > $2
        ORDER BY starts_at ASC`
	return r.list(ctx, query, threadID, at)
}

func (r *windowRepository) list(ctx context.Context, query string, args ...any) ([]domain.AssignmentWindow, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentWindow
	for rows.Next() {
		var w domain.AssignmentWindow
		if err := rows.Scan(
			&w.ID,
			&w.OrgID,
			&w.ThreadID,
			&w.SitterID,
			&w.StartsAt,
			&w.EndsAt,
			&w.BookingRef,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
