// Package bot routes inbound platform events to the command dispatcher and the
// passive message path.
package bot

import (
	"time"

	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/pkg/api"
)

// EventType represents the type of inbound event.
type EventType int

const (
	EventCommand EventType = iota
	EventMessage
	EventMembership
	EventCallback
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventCommand:
		return "command"
	case EventMessage:
		return "message"
	case EventMembership:
		return "membership"
	case EventCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Event is one inbound update.
type Event struct {
	Type      EventType
	ChatID    int64
	Payload   interface{}
	Timestamp time.Time
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(t EventType, chatID int64, payload interface{}) Event {
	return Event{
		Type:      t,
		ChatID:    chatID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// CommandEvent wraps a parsed command.
func CommandEvent(inv *api.Invocation) Event {
	return NewEvent(EventCommand, inv.Chat().ID, inv)
}

// MessageEvent wraps a plain message.
func MessageEvent(msg platform.Message) Event {
	return NewEvent(EventMessage, msg.Chat.ID, msg)
}

// MembershipEvent wraps a join or leave.
func MembershipEvent(p MembershipPayload) Event {
	return NewEvent(EventMembership, p.Chat.ID, p)
}

// CallbackEvent wraps an inline button press.
func CallbackEvent(cb platform.Callback) Event {
	return NewEvent(EventCallback, cb.Chat.ID, cb)
}

// MembershipPayload contains data for membership events.
type MembershipPayload struct {
	Chat   platform.Chat
	User   platform.Actor
	Joined bool
}
