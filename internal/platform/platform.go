// Package platform defines the transport-neutral view of the messaging platform
// that the moderation core talks to.
package platform

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"
)

// Actor is a user (or bot) seen in an inbound event.
type Actor struct {
	ID          int64
	DisplayName string
	Username    string
	IsBot       bool
}

// Mention renders a clickable reference to the actor in rich markup.
func (a Actor) Mention() string {
	name := a.DisplayName
	if name == "" {
		name = strconv.FormatInt(a.ID, 10)
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, a.ID, html.EscapeString(name))
}

// Chat is a conversation the bot participates in.
type Chat struct {
	ID    int64
	Title string
	Type  string
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == "group" || c.Type == "supergroup"
}

// Mention is a user referenced inside a message. UserID is zero when only a
// username is known.
type Mention struct {
	UserID   int64
	Username string
}

// Message is an inbound text message.
type Message struct {
	ID       int
	Chat     Chat
	From     Actor
	Text     string
	ReplyTo  *Message
	Mentions []Mention
	Date     time.Time
}

// Callback is an inline button press.
type Callback struct {
	ID        string
	Chat      Chat
	MessageID int
	From      Actor
	Data      string
}

// MemberStatus is a user's membership status in a chat.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// IsStaff returns true for administrators and the chat creator.
func (s MemberStatus) IsStaff() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// Member is a chat member lookup result.
type Member struct {
	User   Actor
	Status MemberStatus
}

// Permissions is the set of things ordinary members may do in a chat.
type Permissions struct {
	SendMessages       bool
	SendMedia          bool
	SendPolls          bool
	SendOther          bool
	AddWebPagePreviews bool
	ChangeInfo         bool
	InviteUsers        bool
	PinMessages        bool
}

// FullPermissions is the default member permission set used to lift restrictions.
func FullPermissions() Permissions {
	return Permissions{
		SendMessages:       true,
		SendMedia:          true,
		SendPolls:          true,
		SendOther:          true,
		AddWebPagePreviews: true,
		InviteUsers:        true,
	}
}

// NoPermissions revokes every sending permission.
func NoPermissions() Permissions {
	return Permissions{}
}

// Format selects how outbound text is rendered.
type Format int

const (
	FormatNone Format = iota
	FormatSimple
	FormatRich
)

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// SendOptions tweaks an outbound message.
type SendOptions struct {
	Format  Format
	ReplyTo int
	Buttons [][]Button
	Silent  bool
}

// Client is every outbound operation the core performs against the platform.
// A zero until means the restriction never expires.
type Client interface {
	Self() Actor

	Send(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, format Format) error
	Delete(ctx context.Context, chatID int64, messageID int) error

	Restrict(ctx context.Context, chatID, userID int64, perms Permissions, until time.Time) error
	Ban(ctx context.Context, chatID, userID int64, until time.Time) error
	Unban(ctx context.Context, chatID, userID int64) error

	GetMember(ctx context.Context, chatID, userID int64) (Member, error)
	GetChat(ctx context.Context, chatID int64) (Chat, error)

	SetChatPermissions(ctx context.Context, chatID int64, perms Permissions) error
	SetChatTitle(ctx context.Context, chatID int64, title string) error
	SetChatDescription(ctx context.Context, chatID int64, description string) error

	Pin(ctx context.Context, chatID int64, messageID int, silent bool) error
	// Unpin removes the given pin, or the most recent one when messageID is zero.
	Unpin(ctx context.Context, chatID int64, messageID int) error
	UnpinAll(ctx context.Context, chatID int64) error

	AnswerCallback(ctx context.Context, callbackID, text string) error
}
