package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubap159863/DcBot/internal/models"
)

const uniqueViolation = "23505"

// Repository is the durable registry for events and participants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an event. A message_id collision returns models.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, ev *models.Event) error {
	const q = `INSERT INTO events (message_id, channel_id, name, starts_at, category, capacity, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, closed, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, ev.MessageID, ev.ChannelID, ev.Name, ev.StartsAt, ev.Category, ev.Capacity, ev.OwnerID).
		Scan(&ev.ID, &ev.Closed, &ev.CreatedAt, &ev.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("event %s: %w", ev.MessageID, models.ErrDuplicate)
	}
	return err
}

// GetByMessageID returns the event for an external reference.
func (r *Repository) GetByMessageID(ctx context.Context, messageID string) (*models.Event, error) {
	const q = `SELECT id, message_id, channel_id, name, starts_at, category, capacity, owner_id, closed, created_at, updated_at
		FROM events WHERE message_id = $1`
	var ev models.Event
	err := r.pool.QueryRow(ctx, q, messageID).Scan(
		&ev.ID, &ev.MessageID, &ev.ChannelID, &ev.Name, &ev.StartsAt,
		&ev.Category, &ev.Capacity, &ev.OwnerID, &ev.Closed, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", messageID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Delete removes an event and all its participants as one transaction.
// Absent events are a no-op.
func (r *Repository) Delete(ctx context.Context, messageID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM participants WHERE event_id = (SELECT id FROM events WHERE message_id = $1)`,
		messageID); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE message_id = $1`, messageID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return tx.Commit(ctx)
}

// Close marks an event closed. Idempotent; absent events are a no-op.
func (r *Repository) Close(ctx context.Context, messageID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE events SET closed = TRUE, updated_at = NOW() WHERE message_id = $1 AND NOT closed`,
		messageID)
	return err
}

// ListOpenScheduled returns open events with a scheduled time, for
// reconciliation. Safe to re-invoke.
func (r *Repository) ListOpenScheduled(ctx context.Context) ([]models.ScheduledEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT message_id, channel_id, starts_at FROM events WHERE closed = FALSE AND starts_at IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ScheduledEvent
	for rows.Next() {
		var se models.ScheduledEvent
		if err := rows.Scan(&se.MessageID, &se.ChannelID, &se.StartsAt); err != nil {
			return nil, err
		}
		list = append(list, se)
	}
	return list, rows.Err()
}

// AddParticipant registers a user to an event. The event row is locked for
// the duration of the transaction so the capacity check and the insert act
// as one unit; the (event_id, user_id) primary key is the final net for a
// same-user race.
func (r *Repository) AddParticipant(ctx context.Context, messageID, userID string) (models.JoinStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.JoinEventNotFound, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		eventID  int64
		capacity *int
		closed   bool
	)
	err = tx.QueryRow(ctx,
		`SELECT id, capacity, closed FROM events WHERE message_id = $1 FOR UPDATE`,
		messageID).Scan(&eventID, &capacity, &closed)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.JoinEventNotFound, nil
	}
	if err != nil {
		return models.JoinEventNotFound, fmt.Errorf("lock event: %w", err)
	}
	if closed {
		return models.JoinEventClosed, nil
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM participants WHERE event_id = $1`, eventID).Scan(&count); err != nil {
		return models.JoinEventNotFound, fmt.Errorf("count participants: %w", err)
	}
	if capacity != nil && count >= *capacity {
		return models.JoinFull, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO participants (event_id, user_id) VALUES ($1, $2)`, eventID, userID)
	if isUniqueViolation(err) {
		return models.JoinAlreadyRegistered, nil
	}
	if err != nil {
		return models.JoinEventNotFound, fmt.Errorf("insert participant: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.JoinEventNotFound, fmt.Errorf("commit: %w", err)
	}
	return models.JoinAdded, nil
}

// RemoveParticipant withdraws a user. Returns false when the event is
// absent; true otherwise, whether or not the user was registered.
func (r *Repository) RemoveParticipant(ctx context.Context, messageID, userID string) (bool, error) {
	var eventID int64
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM events WHERE message_id = $1`, messageID).Scan(&eventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = r.pool.Exec(ctx,
		`DELETE FROM participants WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListParticipants returns user ids in registration order; empty when the
// event is absent.
func (r *Repository) ListParticipants(ctx context.Context, messageID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.user_id FROM participants p
		 JOIN events e ON e.id = p.event_id
		 WHERE e.message_id = $1
		 ORDER BY p.joined_at, p.user_id`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
