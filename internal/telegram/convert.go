package telegram

import (
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ihiteshgupta/groupguard/internal/bot"
	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/pkg/api"
)

// allowedUpdates are the update kinds requested from getUpdates.
var allowedUpdates = []string{"message", "callback_query", "my_chat_member"}

// Convert turns one update into zero or more bot events.
func (c *Client) Convert(u tgbotapi.Update) []bot.Event {
	switch {
	case u.CallbackQuery != nil:
		return c.convertCallback(u.CallbackQuery)
	case u.MyChatMember != nil:
		return c.convertMyChatMember(u.MyChatMember)
	case u.Message != nil:
		return c.convertMessage(u.Message)
	}
	return nil
}

func (c *Client) convertCallback(q *tgbotapi.CallbackQuery) []bot.Event {
	// Inline-mode callbacks carry no message and are not ours.
	if q.Message == nil {
		return nil
	}
	return []bot.Event{bot.CallbackEvent(platform.Callback{
		ID:        q.ID,
		Chat:      chat(q.Message.Chat),
		MessageID: q.Message.MessageID,
		From:      actor(q.From),
		Data:      q.Data,
	})}
}

func (c *Client) convertMyChatMember(m *tgbotapi.ChatMemberUpdated) []bot.Event {
	joined := isPresent(m.NewChatMember.Status)
	if joined == isPresent(m.OldChatMember.Status) {
		return nil
	}
	return []bot.Event{bot.MembershipEvent(bot.MembershipPayload{
		Chat:   chat(&m.Chat),
		User:   c.self,
		Joined: joined,
	})}
}

func (c *Client) convertMessage(m *tgbotapi.Message) []bot.Event {
	ch := chat(m.Chat)

	if len(m.NewChatMembers) > 0 {
		events := make([]bot.Event, 0, len(m.NewChatMembers))
		for i := range m.NewChatMembers {
			events = append(events, bot.MembershipEvent(bot.MembershipPayload{
				Chat:   ch,
				User:   actor(&m.NewChatMembers[i]),
				Joined: true,
			}))
		}
		return events
	}
	if m.LeftChatMember != nil {
		return []bot.Event{bot.MembershipEvent(bot.MembershipPayload{
			Chat: ch,
			User: actor(m.LeftChatMember),
		})}
	}

	// Channel posts and anonymous admins have no sender.
	if m.From == nil {
		return nil
	}
	msg := message(m)

	if m.IsCommand() {
		if !c.addressedToUs(m.CommandWithAt()) {
			return nil
		}
		return []bot.Event{bot.CommandEvent(&api.Invocation{
			Name:    m.Command(),
			Args:    strings.Fields(m.CommandArguments()),
			Message: msg,
		})}
	}
	return []bot.Event{bot.MessageEvent(msg)}
}

// addressedToUs reports whether "cmd" or "cmd@name" targets this bot.
func (c *Client) addressedToUs(commandWithAt string) bool {
	_, name, ok := strings.Cut(commandWithAt, "@")
	return !ok || strings.EqualFold(name, c.self.Username)
}

func isPresent(status string) bool {
	switch platform.MemberStatus(status) {
	case platform.StatusCreator, platform.StatusAdministrator, platform.StatusMember, platform.StatusRestricted:
		return true
	}
	return false
}

func message(m *tgbotapi.Message) platform.Message {
	text, entities := m.Text, m.Entities
	if text == "" {
		text, entities = m.Caption, m.CaptionEntities
	}

	msg := platform.Message{
		ID:       m.MessageID,
		Chat:     chat(m.Chat),
		From:     actor(m.From),
		Text:     text,
		Mentions: mentions(text, entities),
		Date:     m.Time(),
	}
	if r := m.ReplyToMessage; r != nil {
		msg.ReplyTo = &platform.Message{
			ID:   r.MessageID,
			Chat: chat(r.Chat),
			From: actor(r.From),
			Text: r.Text,
			Date: r.Time(),
		}
	}
	return msg
}

// mentions extracts user references. Entity offsets count UTF-16 code units.
func mentions(text string, entities []tgbotapi.MessageEntity) []platform.Mention {
	var units []uint16
	var out []platform.Mention
	for _, e := range entities {
		switch e.Type {
		case "text_mention":
			if e.User != nil {
				out = append(out, platform.Mention{UserID: e.User.ID, Username: e.User.UserName})
			}
		case "mention":
			if units == nil {
				units = utf16.Encode([]rune(text))
			}
			if e.Offset < 0 || e.Length <= 1 || e.Offset+e.Length > len(units) {
				continue
			}
			name := string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
			out = append(out, platform.Mention{Username: strings.TrimPrefix(name, "@")})
		}
	}
	return out
}
