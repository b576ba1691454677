package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket session.
type TicketStatus string

const (
	TicketOpen    TicketStatus = "open"
	TicketClaimed TicketStatus = "claimed"
	TicketClosing TicketStatus = "closing"
	TicketClosed  TicketStatus = "closed"
)

// TicketSession is a per-owner support interaction. At most one non-closed
// session exists per (owner, category), enforced by a partial unique index.
type TicketSession struct {
	ID        uuid.UUID    `json:"id"`
	OwnerID   string       `json:"owner_id"`
	Category  string       `json:"category"`
	ChannelID string       `json:"channel_id"`
	ClaimedBy *string      `json:"claimed_by,omitempty"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Active reports whether the session still accepts claim/close actions.
func (t *TicketSession) Active() bool {
	return t.Status == TicketOpen || t.Status == TicketClaimed
}
