// Package chat contracts the front-end adapter: the operations the
// orchestration core consumes from the chat platform. The platform itself
// (gateway process, button wiring, embeds) lives outside this service.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced channel or message is gone.
var ErrNotFound = errors.New("chat: not found")

// Message is a chat message as seen through the gateway.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at"`
}

// PermissionOverwrite grants or denies channel visibility to a subject
// (user or role) when creating a ticket channel.
type PermissionOverwrite struct {
	SubjectID string `json:"subject_id"`
	Role      bool   `json:"role"`
	Read      bool   `json:"read"`
	Write     bool   `json:"write"`
}

// Adapter is the consumed front-end surface. Implementations must return
// ErrNotFound (possibly wrapped) for missing channels/messages so callers
// can treat late operations on deleted entities as safe no-ops.
type Adapter interface {
	SendMessage(ctx context.Context, channelID, content string) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	FetchMessage(ctx context.Context, channelID, messageID string) (found bool, err error)
	ListMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	CreateChannel(ctx context.Context, category, name string, overwrites []PermissionOverwrite) (channelID string, err error)
	DeleteChannel(ctx context.Context, channelID string) error
	ResolveRole(ctx context.Context, name string) (roleID string, err error)
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
}

// Mention renders a user mention in gateway markup.
func Mention(userID string) string {
	return "<@" + userID + ">"
}
