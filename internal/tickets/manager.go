// Package tickets implements the support ticket session lifecycle:
// open, claim, and a grace-delayed close that removes the channel.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kubap159863/DcBot/internal/chat"
	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/metrics"
	"github.com/kubap159863/DcBot/pkg/queue"
)

// Store is the persistence surface the manager needs.
type Store interface {
	Create(ctx context.Context, t *models.TicketSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TicketSession, error)
	GetOpenByOwner(ctx context.Context, ownerID, category string) (*models.TicketSession, error)
	ListClosing(ctx context.Context) ([]uuid.UUID, error)
	SetClaimed(ctx context.Context, id uuid.UUID, claimedBy string) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, from []models.TicketStatus, to models.TicketStatus) (bool, error)
}

// Enqueuer dispatches transcript archival jobs.
type Enqueuer interface {
	EnqueueTranscript(ctx context.Context, payload queue.TranscriptPayload) error
}

const finalizeTimeout = 30 * time.Second

// transcriptLimit bounds how many channel messages go into an archive.
const transcriptLimit = 1000

// Manager drives the ticket session state machine. Claim and close require
// the owner or the configured admin role; the destructive close step runs
// after a grace delay on its own goroutine.
type Manager struct {
	store     Store
	chat      chat.Adapter
	notify    Enqueuer
	category  string
	adminRole string
	grace     time.Duration
	archive   bool
	logger    *zap.Logger
}

// NewManager creates the ticket session manager. archive controls whether
// closed tickets get their transcript queued for upload.
func NewManager(store Store, adapter chat.Adapter, notify Enqueuer, category, adminRole string, grace time.Duration, archive bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		chat:      adapter,
		notify:    notify,
		category:  category,
		adminRole: adminRole,
		grace:     grace,
		archive:   archive,
		logger:    logger,
	}
}

// Open creates a session for the owner unless one is already open; in that
// case the existing session is returned together with models.ErrAlreadyOpen
// so the caller can point the owner at it.
func (m *Manager) Open(ctx context.Context, ownerID string) (*models.TicketSession, error) {
	existing, err := m.store.GetOpenByOwner(ctx, ownerID, m.category)
	if err == nil {
		return existing, fmt.Errorf("owner %s: %w", ownerID, models.ErrAlreadyOpen)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	overwrites := []chat.PermissionOverwrite{
		{SubjectID: ownerID, Read: true, Write: true},
	}
	if roleID, err := m.chat.ResolveRole(ctx, m.adminRole); err != nil {
		m.logger.Warn("admin role lookup failed", zap.String("role", m.adminRole), zap.Error(err))
	} else if roleID != "" {
		overwrites = append(overwrites, chat.PermissionOverwrite{SubjectID: roleID, Role: true, Read: true, Write: true})
	}

	name := "ticket-" + strings.ToLower(ownerID)
	channelID, err := m.chat.CreateChannel(ctx, m.category, name, overwrites)
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	sess := &models.TicketSession{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Category:  m.category,
		ChannelID: channelID,
		Status:    models.TicketOpen,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		// Lost a near-simultaneous open: drop the channel we just made and
		// report the surviving session.
		if delErr := m.chat.DeleteChannel(ctx, channelID); delErr != nil {
			m.logger.Warn("orphaned ticket channel not deleted", zap.String("channel_id", channelID), zap.Error(delErr))
		}
		if errors.Is(err, models.ErrAlreadyOpen) {
			if existing, lookupErr := m.store.GetOpenByOwner(ctx, ownerID, m.category); lookupErr == nil {
				return existing, fmt.Errorf("owner %s: %w", ownerID, models.ErrAlreadyOpen)
			}
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	metrics.TicketTransitions.WithLabelValues(string(models.TicketOpen)).Inc()

	welcome := fmt.Sprintf("Hello %s! Describe your issue here, a moderator will be with you shortly.", chat.Mention(ownerID))
	if _, err := m.chat.SendMessage(ctx, channelID, welcome); err != nil {
		m.logger.Warn("welcome message failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	m.logger.Info("ticket opened", zap.String("session_id", sess.ID.String()), zap.String("owner_id", ownerID))
	return sess, nil
}

// Claim assigns the session to the actor. Re-claiming an already claimed
// session replaces the claimant.
func (m *Manager) Claim(ctx context.Context, sessionID uuid.UUID, actorID string) (*models.TicketSession, error) {
	sess, err := m.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrClosed)
	}
	if err := m.authorize(ctx, sess, actorID); err != nil {
		return nil, err
	}

	ok, err := m.store.SetClaimed(ctx, sessionID, actorID)
	if err != nil {
		return nil, fmt.Errorf("claim session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrClosed)
	}
	metrics.TicketTransitions.WithLabelValues(string(models.TicketClaimed)).Inc()

	if _, err := m.chat.SendMessage(ctx, sess.ChannelID, fmt.Sprintf("Ticket claimed by %s", chat.Mention(actorID))); err != nil {
		m.logger.Warn("claim announcement failed", zap.String("channel_id", sess.ChannelID), zap.Error(err))
	}

	sess.Status = models.TicketClaimed
	sess.ClaimedBy = &actorID
	return sess, nil
}

// Close moves the session to closing and, after the grace delay, archives
// the transcript, removes the channel and marks it closed. A close request
// on a closed session is a no-op; on a closing session it re-arms the
// finalizer, so a session whose finalizer was lost (crash, transient store
// error) recovers on the next close attempt.
func (m *Manager) Close(ctx context.Context, sessionID uuid.UUID, actorID string) error {
	sess, err := m.store.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.authorize(ctx, sess, actorID); err != nil {
		return err
	}
	switch sess.Status {
	case models.TicketClosed:
		return nil
	case models.TicketClosing:
		go m.finalize(sessionID)
		return nil
	}

	moved, err := m.store.Transition(ctx, sessionID,
		[]models.TicketStatus{models.TicketOpen, models.TicketClaimed}, models.TicketClosing)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if !moved {
		return nil
	}
	metrics.TicketTransitions.WithLabelValues(string(models.TicketClosing)).Inc()

	if _, err := m.chat.SendMessage(ctx, sess.ChannelID, fmt.Sprintf("Closing ticket in %s...", m.grace)); err != nil {
		m.logger.Warn("close announcement failed", zap.String("channel_id", sess.ChannelID), zap.Error(err))
	}

	go m.finalize(sessionID)
	return nil
}

// Resume re-arms the finalizer for sessions left in closing by a previous
// process. Called once at startup.
func (m *Manager) Resume(ctx context.Context) error {
	ids, err := m.store.ListClosing(ctx)
	if err != nil {
		return fmt.Errorf("list closing sessions: %w", err)
	}
	for _, id := range ids {
		m.logger.Info("resuming ticket close", zap.String("session_id", id.String()))
		go m.finalize(id)
	}
	return nil
}

// authorize allows the session owner and holders of the admin role.
func (m *Manager) authorize(ctx context.Context, sess *models.TicketSession, actorID string) error {
	if actorID == sess.OwnerID {
		return nil
	}
	roleID, err := m.chat.ResolveRole(ctx, m.adminRole)
	if err != nil {
		return fmt.Errorf("resolve role: %w", err)
	}
	if roleID != "" {
		ok, err := m.chat.HasRole(ctx, actorID, roleID)
		if err != nil {
			return fmt.Errorf("check role: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("actor %s: %w", actorID, models.ErrForbidden)
}

// finalize runs after the grace delay. Because a repeated close (or a
// startup resume) can arm more than one finalizer for the same session,
// the closed transition is taken first: only the goroutine that wins it
// archives the transcript and removes the channel.
func (m *Manager) finalize(sessionID uuid.UUID) {
	time.Sleep(m.grace)

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	sess, err := m.store.GetByID(ctx, sessionID)
	if err != nil {
		m.logger.Warn("finalize fetch failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}

	moved, err := m.store.Transition(ctx, sessionID,
		[]models.TicketStatus{models.TicketClosing}, models.TicketClosed)
	if err != nil {
		m.logger.Error("session not marked closed", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}
	if !moved {
		return
	}
	metrics.TicketTransitions.WithLabelValues(string(models.TicketClosed)).Inc()

	if m.archive {
		m.archiveTranscript(ctx, sess)
	}

	if err := m.chat.DeleteChannel(ctx, sess.ChannelID); err != nil && !errors.Is(err, chat.ErrNotFound) {
		m.logger.Warn("ticket channel not deleted", zap.String("channel_id", sess.ChannelID), zap.Error(err))
	}
	m.logger.Info("ticket closed", zap.String("session_id", sessionID.String()))
}

// archiveTranscript captures the channel while it still exists and queues
// the upload; delivery retries happen in the worker.
func (m *Manager) archiveTranscript(ctx context.Context, sess *models.TicketSession) {
	msgs, err := m.chat.ListMessages(ctx, sess.ChannelID, transcriptLimit)
	if err != nil {
		m.logger.Warn("transcript capture failed", zap.String("channel_id", sess.ChannelID), zap.Error(err))
		return
	}
	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.SentAt.UTC().Format(time.RFC3339), msg.AuthorID, msg.Content)
	}
	payload := queue.TranscriptPayload{
		SessionID: sess.ID,
		OwnerID:   sess.OwnerID,
		Content:   b.String(),
	}
	if err := m.notify.EnqueueTranscript(ctx, payload); err != nil {
		m.logger.Warn("transcript enqueue failed", zap.String("session_id", sess.ID.String()), zap.Error(err))
	}
}
