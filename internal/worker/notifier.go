// Package worker delivers outbound chat messages queued by the core:
// reminders, event re-renders and ticket transcript uploads.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kubap159863/DcBot/internal/chat"
	"github.com/kubap159863/DcBot/internal/events"
	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/metrics"
	"github.com/kubap159863/DcBot/pkg/queue"
	"github.com/kubap159863/DcBot/pkg/storage"
)

// EventReader re-reads event state at delivery time so re-renders always
// show the current roster.
type EventReader interface {
	GetByMessageID(ctx context.Context, messageID string) (*models.Event, error)
	ListParticipants(ctx context.Context, messageID string) ([]string, error)
}

// Archiver uploads transcript bodies to object storage.
type Archiver interface {
	UploadTranscript(ctx context.Context, key string, body io.Reader) (string, error)
}

// Notifier processes delivery jobs: dequeue, deliver, retry on error.
type Notifier struct {
	queue   *queue.Queue
	chat    chat.Adapter
	events  EventReader
	archive Archiver // nil disables transcript upload
	logger  *zap.Logger
}

// NewNotifier creates a delivery worker.
func NewNotifier(q *queue.Queue, adapter chat.Adapter, evts EventReader, archive Archiver, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{queue: q, chat: adapter, events: evts, archive: archive, logger: logger}
}

// Process executes one delivery job. Deliveries against deleted events,
// messages or channels succeed as no-ops: the entity is gone, so there is
// nothing left to tell anyone.
func (n *Notifier) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeReminder:
		return n.deliverReminder(ctx, job)
	case queue.JobTypeRefresh:
		return n.deliverRefresh(ctx, job)
	case queue.JobTypeTranscript:
		return n.deliverTranscript(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (n *Notifier) deliverReminder(ctx context.Context, job *queue.Job) error {
	var payload queue.ReminderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if _, err := n.chat.SendMessage(ctx, payload.ChannelID, payload.Content); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("send reminder: %w", err)
	}
	n.logger.Info("reminder delivered", zap.String("message_id", payload.MessageID))
	return nil
}

func (n *Notifier) deliverRefresh(ctx context.Context, job *queue.Job) error {
	var payload queue.RefreshPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	ev, err := n.events.GetByMessageID(ctx, payload.MessageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("fetch event: %w", err)
	}
	participants, err := n.events.ListParticipants(ctx, payload.MessageID)
	if err != nil {
		return fmt.Errorf("fetch participants: %w", err)
	}
	if err := n.chat.EditMessage(ctx, ev.ChannelID, ev.MessageID, events.RenderEvent(ev, participants)); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (n *Notifier) deliverTranscript(ctx context.Context, job *queue.Job) error {
	if n.archive == nil {
		return nil
	}
	var payload queue.TranscriptPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	key := storage.TranscriptKey(payload.OwnerID, payload.SessionID.String())
	if _, err := n.archive.UploadTranscript(ctx, key, strings.NewReader(payload.Content)); err != nil {
		return fmt.Errorf("upload transcript: %w", err)
	}
	n.logger.Info("transcript archived", zap.String("session_id", payload.SessionID.String()), zap.String("key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. A failed
// delivery never stops the loop.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("notifier stopping")
			return
		default:
		}

		job, err := n.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			n.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		n.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := n.Process(ctx, job); err != nil {
			metrics.NotifyJobs.WithLabelValues(string(job.Type), "error").Inc()
			n.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := n.queue.Retry(ctx, job); reErr != nil {
				n.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
		metrics.NotifyJobs.WithLabelValues(string(job.Type), "ok").Inc()
	}
}
