package models

import "time"

// Event represents a signup event announced in a chat channel. MessageID is
// the external reference (the message presenting the event) and is unique;
// ChannelID is the front-end location it lives in, persisted so reminders
// never have to search for it.
type Event struct {
	ID        int64      `json:"id"`
	MessageID string     `json:"message_id"`
	ChannelID string     `json:"channel_id"`
	Name      string     `json:"name"`
	StartsAt  *time.Time `json:"starts_at,omitempty"` // nil = no scheduled time
	Category  string     `json:"category,omitempty"`
	Capacity  *int       `json:"capacity,omitempty"` // nil = unlimited
	OwnerID   string     `json:"owner_id"`
	Closed    bool       `json:"closed"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Participant is one user's registration against one event. The
// (event, user) pair is unique.
type Participant struct {
	EventID  int64     `json:"event_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// ScheduledEvent is the reconciliation projection: an open event with a
// scheduled time and the channel to notify.
type ScheduledEvent struct {
	MessageID string
	ChannelID string
	StartsAt  time.Time
}

// JoinStatus is the outcome of a registration attempt.
type JoinStatus int

const (
	JoinAdded JoinStatus = iota
	JoinAlreadyRegistered
	JoinFull
	JoinEventClosed
	JoinEventNotFound
)

// Reason returns the user-facing reason code for the outcome.
func (s JoinStatus) Reason() string {
	switch s {
	case JoinAdded:
		return "ok"
	case JoinAlreadyRegistered:
		return "already"
	case JoinFull:
		return "full"
	case JoinEventClosed:
		return "closed"
	default:
		return "event_not_found"
	}
}
