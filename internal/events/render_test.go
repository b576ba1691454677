package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kubap159863/DcBot/internal/models"
)

func TestRenderEventRoster(t *testing.T) {
	cap := 3
	starts := time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)
	ev := &models.Event{
		Name:     "Raid Night",
		StartsAt: &starts,
		Category: "gaming",
		Capacity: &cap,
	}

	out := RenderEvent(ev, []string{"u1", "u2"})
	assert.Contains(t, out, "Raid Night")
	assert.Contains(t, out, "2026-09-01 20:00 UTC")
	assert.Contains(t, out, "gaming")
	assert.Contains(t, out, "Participants (2/3)")
	assert.Contains(t, out, "<@u1>")
	assert.Contains(t, out, "<@u2>")
}

func TestRenderEventEmptyUnlimited(t *testing.T) {
	ev := &models.Event{Name: "Open Mic"}

	out := RenderEvent(ev, nil)
	assert.Contains(t, out, "Participants (0/∞)")
	assert.Contains(t, out, "No one signed up yet.")
	assert.Contains(t, out, "—")
}

func TestRenderReminder(t *testing.T) {
	out := RenderReminder("Raid Night", 15*time.Minute, []string{"u1", "u2"})
	assert.Contains(t, out, "Raid Night")
	assert.Contains(t, out, "15 minutes")
	assert.Contains(t, out, "<@u1>, <@u2>")
}

func TestRenderReminderNoParticipants(t *testing.T) {
	out := RenderReminder("Raid Night", 15*time.Minute, nil)
	assert.Contains(t, out, "no participants")
}
