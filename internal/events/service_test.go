package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubap159863/DcBot/internal/models"
	"github.com/kubap159863/DcBot/pkg/queue"
)

// fakeStore implements Store in memory with the same outcome semantics as
// the Postgres repository.
type fakeStore struct {
	mu     sync.Mutex
	events map[string]*models.Event
	parts  map[string][]string
	nextID int64

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: make(map[string]*models.Event),
		parts:  make(map[string][]string),
	}
}

func (f *fakeStore) Create(_ context.Context, ev *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.events[ev.MessageID]; ok {
		return models.ErrDuplicate
	}
	f.nextID++
	ev.ID = f.nextID
	cp := *ev
	f.events[ev.MessageID] = &cp
	return nil
}

func (f *fakeStore) GetByMessageID(_ context.Context, messageID string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[messageID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", messageID, models.ErrNotFound)
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeStore) Delete(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, messageID)
	delete(f.parts, messageID)
	return nil
}

func (f *fakeStore) Close(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[messageID]; ok {
		ev.Closed = true
	}
	return nil
}

func (f *fakeStore) AddParticipant(_ context.Context, messageID, userID string) (models.JoinStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[messageID]
	if !ok {
		return models.JoinEventNotFound, nil
	}
	if ev.Closed {
		return models.JoinEventClosed, nil
	}
	for _, u := range f.parts[messageID] {
		if u == userID {
			return models.JoinAlreadyRegistered, nil
		}
	}
	if ev.Capacity != nil && len(f.parts[messageID]) >= *ev.Capacity {
		return models.JoinFull, nil
	}
	f.parts[messageID] = append(f.parts[messageID], userID)
	return models.JoinAdded, nil
}

func (f *fakeStore) RemoveParticipant(_ context.Context, messageID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[messageID]; !ok {
		return false, nil
	}
	users := f.parts[messageID]
	for i, u := range users {
		if u == userID {
			f.parts[messageID] = append(users[:i], users[i+1:]...)
			break
		}
	}
	return true, nil
}

func (f *fakeStore) ListParticipants(_ context.Context, messageID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.parts[messageID]...), nil
}

type fakeScheduler struct {
	armed     []string
	cancelled []string
}

func (f *fakeScheduler) Arm(messageID, _ string, _ time.Time) {
	f.armed = append(f.armed, messageID)
}

func (f *fakeScheduler) Cancel(messageID string) {
	f.cancelled = append(f.cancelled, messageID)
}

type fakeEnqueuer struct {
	refreshed []string
	err       error
}

func (f *fakeEnqueuer) EnqueueRefresh(_ context.Context, p queue.RefreshPayload) error {
	if f.err != nil {
		return f.err
	}
	f.refreshed = append(f.refreshed, p.MessageID)
	return nil
}

type fakeSender struct {
	sent    []string
	deleted []string
	nextID  int
	sendErr error
}

func (f *fakeSender) SendMessage(_ context.Context, _, content string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, content)
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *fakeSender) DeleteMessage(_ context.Context, _, messageID string) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func newTestService(store *fakeStore) (*Service, *fakeScheduler, *fakeEnqueuer, *fakeSender) {
	sched := &fakeScheduler{}
	notify := &fakeEnqueuer{}
	sender := &fakeSender{}
	return NewService(store, sched, notify, sender, nil), sched, notify, sender
}

func seedEvent(t *testing.T, svc *Service, capacity *int) *models.Event {
	t.Helper()
	ev, err := svc.Create(context.Background(), CreateInput{
		ChannelID: "chan-1",
		Name:      "Raid Night",
		Capacity:  capacity,
		OwnerID:   "owner",
	})
	require.NoError(t, err)
	return ev
}

func intPtr(n int) *int { return &n }

func TestServiceCapacityScenario(t *testing.T) {
	store := newFakeStore()
	svc, _, _, _ := newTestService(store)
	ctx := context.Background()

	ev := seedEvent(t, svc, intPtr(2))

	reason, err := svc.Join(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "ok", reason)

	reason, err = svc.Join(ctx, ev.MessageID, "user-b")
	require.NoError(t, err)
	assert.Equal(t, "ok", reason)

	reason, err = svc.Join(ctx, ev.MessageID, "user-c")
	require.NoError(t, err)
	assert.Equal(t, "full", reason)

	ok, err := svc.Leave(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	assert.True(t, ok)

	reason, err = svc.Join(ctx, ev.MessageID, "user-c")
	require.NoError(t, err)
	assert.Equal(t, "ok", reason)

	users, err := svc.Participants(ctx, ev.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-b", "user-c"}, users)
}

func TestServiceDuplicateJoin(t *testing.T) {
	store := newFakeStore()
	svc, _, _, _ := newTestService(store)
	ctx := context.Background()

	ev := seedEvent(t, svc, nil)

	reason, err := svc.Join(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "ok", reason)

	reason, err = svc.Join(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "already", reason)

	users, err := svc.Participants(ctx, ev.MessageID)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestServiceClosedEvent(t *testing.T) {
	store := newFakeStore()
	svc, sched, _, _ := newTestService(store)
	ctx := context.Background()

	ev := seedEvent(t, svc, nil)
	reason, err := svc.Join(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	require.Equal(t, "ok", reason)

	require.NoError(t, svc.Close(ctx, ev.MessageID, "owner"))
	assert.Contains(t, sched.cancelled, ev.MessageID)

	reason, err = svc.Join(ctx, ev.MessageID, "user-b")
	require.NoError(t, err)
	assert.Equal(t, "closed", reason)

	// Withdrawal stays possible after closing.
	ok, err := svc.Leave(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceCloseForbiddenForNonOwner(t *testing.T) {
	store := newFakeStore()
	svc, _, _, _ := newTestService(store)
	ctx := context.Background()

	ev := seedEvent(t, svc, nil)
	err := svc.Close(ctx, ev.MessageID, "someone-else")
	assert.ErrorIs(t, err, models.ErrForbidden)

	got, err := svc.Get(ctx, ev.MessageID)
	require.NoError(t, err)
	assert.False(t, got.Closed)
}

func TestServiceJoinUnknownEvent(t *testing.T) {
	store := newFakeStore()
	svc, _, notify, _ := newTestService(store)

	reason, err := svc.Join(context.Background(), "missing", "user-a")
	require.NoError(t, err)
	assert.Equal(t, "event_not_found", reason)
	assert.Empty(t, notify.refreshed)
}

func TestServiceRefreshOnlyOnChange(t *testing.T) {
	store := newFakeStore()
	svc, _, notify, _ := newTestService(store)
	ctx := context.Background()

	ev := seedEvent(t, svc, intPtr(1))

	_, err := svc.Join(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	_, err = svc.Join(ctx, ev.MessageID, "user-b") // full, no change
	require.NoError(t, err)

	assert.Equal(t, []string{ev.MessageID}, notify.refreshed)
}

func TestServiceRefreshFailureDoesNotFailJoin(t *testing.T) {
	store := newFakeStore()
	svc, _, notify, _ := newTestService(store)
	notify.err = errors.New("redis down")
	ctx := context.Background()

	ev := seedEvent(t, svc, nil)
	reason, err := svc.Join(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "ok", reason)
}

func TestServiceCreateArmsReminder(t *testing.T) {
	store := newFakeStore()
	svc, sched, _, sender := newTestService(store)
	starts := time.Now().UTC().Add(time.Hour)

	ev, err := svc.Create(context.Background(), CreateInput{
		ChannelID: "chan-1",
		Name:      "Scheduled",
		StartsAt:  &starts,
		OwnerID:   "owner",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ev.MessageID}, sched.armed)
	assert.Len(t, sender.sent, 1)
}

func TestServiceCreateWithoutTimeDoesNotArm(t *testing.T) {
	store := newFakeStore()
	svc, sched, _, _ := newTestService(store)

	seedEvent(t, svc, nil)
	assert.Empty(t, sched.armed)
}

func TestServiceCreateStoreFailureDeletesAnnounce(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db down")
	svc, _, _, sender := newTestService(store)

	_, err := svc.Create(context.Background(), CreateInput{
		ChannelID: "chan-1",
		Name:      "Doomed",
		OwnerID:   "owner",
	})
	require.Error(t, err)
	assert.Len(t, sender.deleted, 1)
}

func TestServiceDelete(t *testing.T) {
	store := newFakeStore()
	svc, sched, _, sender := newTestService(store)
	ctx := context.Background()

	ev := seedEvent(t, svc, nil)
	_, err := svc.Join(ctx, ev.MessageID, "user-a")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, ev.MessageID, "owner"))
	assert.Contains(t, sched.cancelled, ev.MessageID)
	assert.Contains(t, sender.deleted, ev.MessageID)

	users, err := svc.Participants(ctx, ev.MessageID)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = svc.Get(ctx, ev.MessageID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Deleting a deleted event is a no-op.
	assert.NoError(t, svc.Delete(ctx, ev.MessageID, "owner"))
}
