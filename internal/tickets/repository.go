package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubap159863/DcBot/internal/models"
)

const uniqueViolation = "23505"

// Repository persists ticket sessions. The partial unique index on
// (owner_id, category) for non-closed rows is the derived session identity:
// a second concurrent open for the same owner loses at insert time.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a ticket session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an open session. An existing open session for the same
// owner and category returns models.ErrAlreadyOpen.
func (r *Repository) Create(ctx context.Context, t *models.TicketSession) error {
	const q = `INSERT INTO ticket_sessions (id, owner_id, category, channel_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.OwnerID, t.Category, t.ChannelID, t.Status).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("owner %s: %w", t.OwnerID, models.ErrAlreadyOpen)
	}
	return err
}

// GetByID returns a session by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.TicketSession, error) {
	const q = `SELECT id, owner_id, category, channel_id, claimed_by, status, created_at, updated_at
		FROM ticket_sessions WHERE id = $1`
	var t models.TicketSession
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&t.ID, &t.OwnerID, &t.Category, &t.ChannelID, &t.ClaimedBy, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetOpenByOwner returns the owner's non-closed session for a category.
func (r *Repository) GetOpenByOwner(ctx context.Context, ownerID, category string) (*models.TicketSession, error) {
	const q = `SELECT id, owner_id, category, channel_id, claimed_by, status, created_at, updated_at
		FROM ticket_sessions WHERE owner_id = $1 AND category = $2 AND status <> 'closed'`
	var t models.TicketSession
	err := r.pool.QueryRow(ctx, q, ownerID, category).Scan(
		&t.ID, &t.OwnerID, &t.Category, &t.ChannelID, &t.ClaimedBy, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("owner %s: %w", ownerID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListClosing returns ids of sessions stuck in closing, so their finalize
// step can be re-armed after a restart.
func (r *Repository) ListClosing(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM ticket_sessions WHERE status = 'closing'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetClaimed records the claimant while the session is open or claimed.
// Returns false when the session was not in a claimable state.
func (r *Repository) SetClaimed(ctx context.Context, id uuid.UUID, claimedBy string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ticket_sessions SET claimed_by = $2, status = 'claimed', updated_at = NOW()
		 WHERE id = $1 AND status IN ('open', 'claimed')`, id, claimedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Transition moves a session from one of the given states to another.
// Returns false (no error) when the session was not in an expected state,
// which makes repeated close requests no-ops.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from []models.TicketStatus, to models.TicketStatus) (bool, error) {
	states := make([]string, len(from))
	for i, st := range from {
		states[i] = string(st)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE ticket_sessions SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = ANY($3)`, id, to, states)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
