package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/metrics"
	"github.com/kubap159863/DcBot/pkg/queue"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, ev *models.Event) error
	GetByMessageID(ctx context.Context, messageID string) (*models.Event, error)
	Delete(ctx context.Context, messageID string) error
	Close(ctx context.Context, messageID string) error
	AddParticipant(ctx context.Context, messageID, userID string) (models.JoinStatus, error)
	RemoveParticipant(ctx context.Context, messageID, userID string) (bool, error)
	ListParticipants(ctx context.Context, messageID string) ([]string, error)
}

// Scheduler arms and cancels reminder jobs for events.
type Scheduler interface {
	Arm(messageID, channelID string, startsAt time.Time)
	Cancel(messageID string)
}

// Enqueuer dispatches re-render jobs to the delivery worker.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, payload queue.RefreshPayload) error
}

// Sender is the subset of the chat adapter the service uses directly.
type Sender interface {
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Service implements capacity-safe registration over the store. Refresh
// failures are secondary side effects: logged, never returned, because the
// store change has already committed.
type Service struct {
	store     Store
	scheduler Scheduler
	notify    Enqueuer
	sender    Sender
	logger    *zap.Logger
}

// NewService creates the registration service.
func NewService(store Store, scheduler Scheduler, notify Enqueuer, sender Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, scheduler: scheduler, notify: notify, sender: sender, logger: logger}
}

// CreateInput is what the create-event command carries.
type CreateInput struct {
	ChannelID string
	Name      string
	StartsAt  *time.Time
	Category  string
	Capacity  *int
	OwnerID   string
}

// Create announces the event in its channel, persists it with the message
// reference and channel, and arms the reminder when a future time is set.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Event, error) {
	ev := &models.Event{
		ChannelID: in.ChannelID,
		Name:      in.Name,
		StartsAt:  in.StartsAt,
		Category:  in.Category,
		Capacity:  in.Capacity,
		OwnerID:   in.OwnerID,
	}

	messageID, err := s.sender.SendMessage(ctx, in.ChannelID, RenderEvent(ev, nil))
	if err != nil {
		return nil, fmt.Errorf("announce event: %w", err)
	}
	ev.MessageID = messageID

	if err := s.store.Create(ctx, ev); err != nil {
		// The announce message is now orphaned; remove it so the channel
		// doesn't show an event that was never registered.
		if delErr := s.sender.DeleteMessage(ctx, in.ChannelID, messageID); delErr != nil {
			s.logger.Warn("orphaned announce message not deleted",
				zap.String("message_id", messageID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create event: %w", err)
	}

	if ev.StartsAt != nil {
		s.scheduler.Arm(ev.MessageID, ev.ChannelID, *ev.StartsAt)
	}
	return ev, nil
}

// Get returns an event by its external reference.
func (s *Service) Get(ctx context.Context, messageID string) (*models.Event, error) {
	return s.store.GetByMessageID(ctx, messageID)
}

// Join registers a user and returns the user-facing reason code.
func (s *Service) Join(ctx context.Context, messageID, userID string) (string, error) {
	status, err := s.store.AddParticipant(ctx, messageID, userID)
	if err != nil {
		return "", fmt.Errorf("add participant: %w", err)
	}
	metrics.JoinAttempts.WithLabelValues(status.Reason()).Inc()
	if status == models.JoinAdded {
		s.refresh(ctx, messageID)
	}
	return status.Reason(), nil
}

// Leave withdraws a user. Withdrawals stay possible after an event closes.
func (s *Service) Leave(ctx context.Context, messageID, userID string) (bool, error) {
	ok, err := s.store.RemoveParticipant(ctx, messageID, userID)
	if err != nil {
		return false, fmt.Errorf("remove participant: %w", err)
	}
	if ok {
		s.refresh(ctx, messageID)
	}
	return ok, nil
}

// Close stops registrations. Only the event owner may close; the armed
// reminder is cancelled because a closed event no longer notifies.
func (s *Service) Close(ctx context.Context, messageID, actorID string) error {
	ev, err := s.store.GetByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if ev.OwnerID != actorID {
		return fmt.Errorf("close event %s: %w", messageID, models.ErrForbidden)
	}
	if err := s.store.Close(ctx, messageID); err != nil {
		return fmt.Errorf("close event: %w", err)
	}
	s.scheduler.Cancel(messageID)
	s.refresh(ctx, messageID)
	return nil
}

// Delete removes the event with its participants and the announce message.
func (s *Service) Delete(ctx context.Context, messageID, actorID string) error {
	ev, err := s.store.GetByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if ev.OwnerID != actorID {
		return fmt.Errorf("delete event %s: %w", messageID, models.ErrForbidden)
	}
	s.scheduler.Cancel(messageID)
	if err := s.store.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if err := s.sender.DeleteMessage(ctx, ev.ChannelID, messageID); err != nil {
		s.logger.Warn("announce message not deleted", zap.String("message_id", messageID), zap.Error(err))
	}
	return nil
}

// Participants returns the registration roster in insertion order.
func (s *Service) Participants(ctx context.Context, messageID string) ([]string, error) {
	return s.store.ListParticipants(ctx, messageID)
}

func (s *Service) refresh(ctx context.Context, messageID string) {
	if err := s.notify.EnqueueRefresh(ctx, queue.RefreshPayload{MessageID: messageID}); err != nil {
		s.logger.Warn("refresh enqueue failed", zap.String("message_id", messageID), zap.Error(err))
	}
}
