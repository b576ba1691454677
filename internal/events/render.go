package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/kubap159863/DcBot/internal/chat"
	"github.com/kubap159863/DcBot/internal/models"
)

// RenderEvent builds the announce message body: name, time, category and
// the participant roster with mentions.
func RenderEvent(ev *models.Event, participants []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 **%s**\n", ev.Name)
	fmt.Fprintf(&b, "📅 **%s**\n", orDash(formatTime(ev.StartsAt)))
	fmt.Fprintf(&b, "📂 **%s**\n\n", orDash(ev.Category))
	fmt.Fprintf(&b, "👥 **Participants (%d/%s):**\n", len(participants), capacityLabel(ev.Capacity))
	if len(participants) == 0 {
		b.WriteString("No one signed up yet.")
		return b.String()
	}
	for i, u := range participants {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• " + chat.Mention(u))
	}
	return b.String()
}

// RenderReminder builds the reminder notification with the mention list.
func RenderReminder(name string, window time.Duration, participants []string) string {
	mentions := "no participants"
	if len(participants) > 0 {
		ms := make([]string, len(participants))
		for i, u := range participants {
			ms[i] = chat.Mention(u)
		}
		mentions = strings.Join(ms, ", ")
	}
	return fmt.Sprintf("⏰ Reminder: **%s** starts in %s. Participants: %s",
		name, formatWindow(window), mentions)
}

func capacityLabel(capacity *int) string {
	if capacity == nil {
		return "∞"
	}
	return fmt.Sprintf("%d", *capacity)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func formatWindow(d time.Duration) string {
	if d >= time.Minute {
		return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
	}
	return d.Round(time.Second).String()
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
