package reminders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubap159863/DcBot/internal/clock"
	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/queue"
)

type fakeSource struct {
	mu        sync.Mutex
	events    map[string]*models.Event
	parts     map[string][]string
	scheduled []models.ScheduledEvent
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(map[string]*models.Event),
		parts:  make(map[string][]string),
	}
}

func (f *fakeSource) addEvent(messageID string, closed bool, participants ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[messageID] = &models.Event{MessageID: messageID, ChannelID: "chan-1", Name: "Raid Night", Closed: closed}
	f.parts[messageID] = participants
}

func (f *fakeSource) GetByMessageID(_ context.Context, messageID string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[messageID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", messageID, models.ErrNotFound)
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeSource) ListOpenScheduled(_ context.Context) ([]models.ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ScheduledEvent(nil), f.scheduled...), nil
}

func (f *fakeSource) ListParticipants(_ context.Context, messageID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.parts[messageID]...), nil
}

type captureEnqueuer struct {
	ch chan queue.ReminderPayload
}

func newCaptureEnqueuer() *captureEnqueuer {
	return &captureEnqueuer{ch: make(chan queue.ReminderPayload, 8)}
}

func (c *captureEnqueuer) EnqueueReminder(_ context.Context, p queue.ReminderPayload) error {
	c.ch <- p
	return nil
}

func (c *captureEnqueuer) wait(t *testing.T, d time.Duration) (queue.ReminderPayload, bool) {
	t.Helper()
	select {
	case p := <-c.ch:
		return p, true
	case <-time.After(d):
		return queue.ReminderPayload{}, false
	}
}

func newTestScheduler(src *fakeSource, sink *captureEnqueuer, window time.Duration) *Scheduler {
	return New(src, sink, clock.NewSystem(), window, time.Hour, nil)
}

func TestArmPastEventIsNoOp(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	s := newTestScheduler(src, sink, 15*time.Minute)

	src.addEvent("msg-1", false)
	s.Arm("msg-1", "chan-1", time.Now().UTC().Add(-time.Minute))

	assert.False(t, s.Armed("msg-1"))
	_, fired := sink.wait(t, 50*time.Millisecond)
	assert.False(t, fired)
}

func TestArmImminentEventFiresImmediately(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	// Reminder window far larger than the time remaining: lead time is
	// clamped and the job fires right away.
	s := newTestScheduler(src, sink, time.Hour)

	src.addEvent("msg-1", false, "u1", "u2")
	s.Arm("msg-1", "chan-1", time.Now().UTC().Add(50*time.Millisecond))

	p, fired := sink.wait(t, time.Second)
	require.True(t, fired)
	assert.Equal(t, "msg-1", p.MessageID)
	assert.Equal(t, "chan-1", p.ChannelID)
	assert.Contains(t, p.Content, "<@u1>, <@u2>")
	assert.False(t, s.Armed("msg-1"))
}

func TestArmTwiceKeepsOneJob(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	s := newTestScheduler(src, sink, time.Hour)

	src.addEvent("msg-1", false)
	starts := time.Now().UTC().Add(30 * time.Millisecond)
	s.Arm("msg-1", "chan-1", starts)
	s.Arm("msg-1", "chan-1", starts)

	_, fired := sink.wait(t, time.Second)
	require.True(t, fired)
	_, again := sink.wait(t, 100*time.Millisecond)
	assert.False(t, again, "second armed job must not exist")
}

func TestCancelPreventsFire(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	s := newTestScheduler(src, sink, 10*time.Millisecond)

	src.addEvent("msg-1", false)
	s.Arm("msg-1", "chan-1", time.Now().UTC().Add(200*time.Millisecond))
	require.True(t, s.Armed("msg-1"))

	s.Cancel("msg-1")
	assert.False(t, s.Armed("msg-1"))

	_, fired := sink.wait(t, 400*time.Millisecond)
	assert.False(t, fired)
}

func TestFireDropsDeletedEvent(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	s := newTestScheduler(src, sink, time.Hour)

	// Never registered in the source: the re-fetch at fire time fails and
	// the reminder is silently dropped.
	s.Arm("msg-gone", "chan-1", time.Now().UTC().Add(20*time.Millisecond))

	_, fired := sink.wait(t, 300*time.Millisecond)
	assert.False(t, fired)
}

func TestFireDropsClosedEvent(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	s := newTestScheduler(src, sink, time.Hour)

	src.addEvent("msg-1", true)
	s.Arm("msg-1", "chan-1", time.Now().UTC().Add(20*time.Millisecond))

	_, fired := sink.wait(t, 300*time.Millisecond)
	assert.False(t, fired)
}

func TestReconcileDoesNotRefireInsideWindow(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	// The event is already inside the reminder window, so the first pass
	// clamps the lead and fires right away.
	s := newTestScheduler(src, sink, time.Hour)

	src.addEvent("msg-1", false, "u1")
	src.scheduled = []models.ScheduledEvent{
		{MessageID: "msg-1", ChannelID: "chan-1", StartsAt: time.Now().UTC().Add(30 * time.Minute)},
	}

	s.Reconcile(context.Background())
	_, fired := sink.wait(t, time.Second)
	require.True(t, fired)

	s.Reconcile(context.Background())
	_, again := sink.wait(t, 200*time.Millisecond)
	assert.False(t, again, "reminder must not fire twice for the same event")
}

func TestReconcileDropsExpiredTombstones(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	s := newTestScheduler(src, sink, time.Hour)

	src.addEvent("msg-1", false)
	starts := time.Now().UTC().Add(30 * time.Millisecond)
	s.Arm("msg-1", "chan-1", starts)
	_, fired := sink.wait(t, time.Second)
	require.True(t, fired)

	// Once the event start has passed the tombstone is swept, and the next
	// scan leaves the past event unarmed.
	time.Sleep(50 * time.Millisecond)
	src.scheduled = []models.ScheduledEvent{
		{MessageID: "msg-1", ChannelID: "chan-1", StartsAt: starts},
	}
	s.Reconcile(context.Background())

	assert.False(t, s.Armed("msg-1"))
	_, again := sink.wait(t, 100*time.Millisecond)
	assert.False(t, again)
}

func TestReconcileArmsMissingJobs(t *testing.T) {
	src := newFakeSource()
	sink := newCaptureEnqueuer()
	s := newTestScheduler(src, sink, time.Hour)

	src.addEvent("msg-1", false, "u1")
	src.scheduled = []models.ScheduledEvent{
		{MessageID: "msg-1", ChannelID: "chan-1", StartsAt: time.Now().UTC().Add(30 * time.Millisecond)},
		{MessageID: "msg-old", ChannelID: "chan-1", StartsAt: time.Now().UTC().Add(-time.Hour)},
	}

	s.Reconcile(context.Background())

	p, fired := sink.wait(t, time.Second)
	require.True(t, fired)
	assert.Equal(t, "msg-1", p.MessageID)
	assert.False(t, s.Armed("msg-old"))
}
