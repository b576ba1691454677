// Package queue is a Redis-backed queue for outbound chat deliveries.
// Sends are secondary side effects: the primary state change has already
// committed, so delivery is retried here instead of rolling anything back.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueNotify is the Redis list key for outbound delivery jobs.
	QueueNotify = "notify:outbound"
	// QueueDLQ is the dead-letter queue for jobs that exhausted retries.
	QueueDLQ = "notify:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	// JobTypeReminder sends an event reminder message.
	JobTypeReminder JobType = "reminder"
	// JobTypeRefresh re-renders an event message after a roster change.
	JobTypeRefresh JobType = "refresh"
	// JobTypeTranscript archives a closed ticket channel to object storage.
	JobTypeTranscript JobType = "transcript"
)

// ReminderPayload is the payload for reminder jobs. Content is rendered at
// fire time so the roster in it is the one observed by the scheduler.
type ReminderPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// RefreshPayload is the payload for event re-render jobs. Only the external
// reference travels; the worker re-reads current state before editing.
type RefreshPayload struct {
	MessageID string `json:"message_id"`
}

// TranscriptPayload is the payload for ticket transcript archival jobs.
// The transcript text is captured before the channel is deleted, so the
// upload can be retried after the channel is gone.
type TranscriptPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	OwnerID   string    `json:"owner_id"`
	Content   string    `json:"content"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func (q *Queue) enqueue(ctx context.Context, jobType JobType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueNotify, string(raw)).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(jobType)))
	return nil
}

// EnqueueReminder enqueues a reminder delivery job.
func (q *Queue) EnqueueReminder(ctx context.Context, payload ReminderPayload) error {
	return q.enqueue(ctx, JobTypeReminder, payload)
}

// EnqueueRefresh enqueues an event re-render job.
func (q *Queue) EnqueueRefresh(ctx context.Context, payload RefreshPayload) error {
	return q.enqueue(ctx, JobTypeRefresh, payload)
}

// EnqueueTranscript enqueues a ticket transcript archival job.
func (q *Queue) EnqueueTranscript(ctx context.Context, payload TranscriptPayload) error {
	return q.enqueue(ctx, JobTypeTranscript, payload)
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueNotify).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries,
// pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, string(raw)).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueNotify, string(raw)).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
