// Package reminders owns the in-memory reminder job table. The table is a
// disposable cache over the store: it is rebuilt by reconciliation after a
// restart and never outlives the process.
package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kubap159863/DcBot/internal/clock"
	"github.com/kubap159863/DcBot/internal/events"
	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/metrics"
	"github.com/kubap159863/DcBot/pkg/queue"
)

// EventSource is the read surface the scheduler needs from the store.
type EventSource interface {
	GetByMessageID(ctx context.Context, messageID string) (*models.Event, error)
	ListOpenScheduled(ctx context.Context) ([]models.ScheduledEvent, error)
	ListParticipants(ctx context.Context, messageID string) ([]string, error)
}

// Enqueuer hands the rendered notification to the delivery worker, so a
// slow gateway cannot stall the scheduler.
type Enqueuer interface {
	EnqueueReminder(ctx context.Context, payload queue.ReminderPayload) error
}

const fireTimeout = 30 * time.Second

type job struct {
	cancel   chan struct{}
	startsAt time.Time
	fired    bool
}

// Scheduler arms one reminder per open scheduled event and reconciles the
// table against the store periodically. All table access goes through the
// mutex; each armed job waits on its own goroutine. A fired job stays in
// the table as a tombstone until its event start passes, so reconciliation
// cannot re-arm (and re-fire) an event already inside the reminder window.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*job

	store    EventSource
	notify   Enqueuer
	clock    clock.Clock
	window   time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// New creates a scheduler. window is the reminder lead time; interval is
// the reconciliation period.
func New(store EventSource, notify Enqueuer, clk clock.Clock, window, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Scheduler{
		jobs:     make(map[string]*job),
		store:    store,
		notify:   notify,
		clock:    clk,
		window:   window,
		interval: interval,
		logger:   logger,
	}
}

// Arm schedules a reminder for the event unless one is already armed or the
// event has started. The wake-up is startsAt minus min(window, remaining):
// an event closer than the window fires immediately.
func (s *Scheduler) Arm(messageID, channelID string, startsAt time.Time) {
	remaining := startsAt.Sub(s.clock.Now())
	if remaining <= 0 {
		metrics.RemindersFired.WithLabelValues("dropped").Inc()
		return
	}

	s.mu.Lock()
	if _, exists := s.jobs[messageID]; exists {
		s.mu.Unlock()
		return
	}
	j := &job{cancel: make(chan struct{}), startsAt: startsAt}
	s.jobs[messageID] = j
	s.mu.Unlock()
	metrics.RemindersArmed.Inc()

	lead := s.window
	if remaining < lead {
		lead = remaining
	}
	wait := remaining - lead

	s.logger.Info("reminder armed",
		zap.String("message_id", messageID),
		zap.Duration("fires_in", wait))
	go s.run(messageID, channelID, wait, j)
}

// Cancel drops the table entry for an event, if any. A timer that already
// fired is harmless: firing re-checks the event first.
func (s *Scheduler) Cancel(messageID string) {
	s.mu.Lock()
	j, ok := s.jobs[messageID]
	var fired bool
	if ok {
		delete(s.jobs, messageID)
		fired = j.fired
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	close(j.cancel)
	if !fired {
		metrics.RemindersArmed.Dec()
		metrics.RemindersFired.WithLabelValues("cancelled").Inc()
		s.logger.Info("reminder cancelled", zap.String("message_id", messageID))
	}
}

// Armed reports whether a job is pending for the event. Fired tombstones
// do not count.
func (s *Scheduler) Armed(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[messageID]
	return ok && !j.fired
}

// Run reconciles immediately and then every interval until ctx is done.
// Individual failures are logged; the loop never stops on them.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Reconcile(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}

// Reconcile drops tombstones of events that have started and then scans
// open scheduled events, arming any not in the table.
func (s *Scheduler) Reconcile(ctx context.Context) {
	now := s.clock.Now()
	s.mu.Lock()
	for id, j := range s.jobs {
		if j.fired && !now.Before(j.startsAt) {
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	list, err := s.store.ListOpenScheduled(ctx)
	if err != nil {
		s.logger.Warn("reconcile scan failed", zap.Error(err))
		return
	}
	for _, se := range list {
		s.Arm(se.MessageID, se.ChannelID, se.StartsAt)
	}
}

func (s *Scheduler) run(messageID, channelID string, wait time.Duration, j *job) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-j.cancel:
		return
	case <-timer.C:
	}
	s.markFired(messageID, j)
	s.fire(messageID, channelID)
}

// markFired turns the job entry into a tombstone if it is still the
// current one. Cancel may have already removed it.
func (s *Scheduler) markFired(messageID string, j *job) {
	s.mu.Lock()
	if cur, ok := s.jobs[messageID]; ok && cur == j {
		j.fired = true
		metrics.RemindersArmed.Dec()
	}
	s.mu.Unlock()
}

// fire re-fetches the event: deleted or closed since arming means a silent
// drop. Otherwise the rendered notification is queued for delivery to the
// event's persisted channel.
func (s *Scheduler) fire(messageID, channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	ev, err := s.store.GetByMessageID(ctx, messageID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("reminder fetch failed", zap.String("message_id", messageID), zap.Error(err))
		}
		metrics.RemindersFired.WithLabelValues("dropped").Inc()
		return
	}
	if ev.Closed {
		metrics.RemindersFired.WithLabelValues("dropped").Inc()
		return
	}

	participants, err := s.store.ListParticipants(ctx, messageID)
	if err != nil {
		s.logger.Warn("reminder roster fetch failed", zap.String("message_id", messageID), zap.Error(err))
	}

	payload := queue.ReminderPayload{
		MessageID: messageID,
		ChannelID: channelID,
		Content:   events.RenderReminder(ev.Name, s.window, participants),
	}
	if err := s.notify.EnqueueReminder(ctx, payload); err != nil {
		// Best effort: the next reconciliation cycle will not re-arm a past
		// event, matching the at-most-once delivery posture.
		s.logger.Warn("reminder enqueue failed", zap.String("message_id", messageID), zap.Error(err))
		metrics.RemindersFired.WithLabelValues("dropped").Inc()
		return
	}
	metrics.RemindersFired.WithLabelValues("fired").Inc()
	s.logger.Info("reminder fired", zap.String("message_id", messageID))
}
