// Package telegram adapts the Telegram Bot API to platform.Client and turns
// polled updates into bot events.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/config"
	"github.com/ihiteshgupta/groupguard/internal/health"
	"github.com/ihiteshgupta/groupguard/internal/platform"
)

// botAPI is the subset of *tgbotapi.BotAPI the adapter calls.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Client implements platform.Client on top of the Bot API.
type Client struct {
	api         botAPI
	self        platform.Actor
	health      *health.Monitor
	pollTimeout time.Duration
	log         *zap.Logger
}

// NewClient authorizes the bot token, retrying transient failures a few times.
func NewClient(ctx context.Context, cfg *config.Config, monitor *health.Monitor, log *zap.Logger) (*Client, error) {
	var api *tgbotapi.BotAPI
	connect := func() error {
		var err error
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			if isUnauthorized(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.ReconnectBaseDelay
	bo.MaxInterval = cfg.ReconnectMaxDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx)
	notify := func(err error, next time.Duration) {
		log.Warn("telegram authorization failed, retrying", zap.Duration("next", next), zap.Error(err))
	}
	if err := backoff.RetryNotify(connect, policy, notify); err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}

	log.Info("telegram bot authorized", zap.String("username", api.Self.UserName), zap.Int64("id", api.Self.ID))
	return newClient(api, api.Self, cfg.PollTimeout, monitor, log), nil
}

func newClient(api botAPI, self tgbotapi.User, pollTimeout time.Duration, monitor *health.Monitor, log *zap.Logger) *Client {
	return &Client{
		api:         api,
		self:        actor(&self),
		health:      monitor,
		pollTimeout: pollTimeout,
		log:         log.Named("telegram"),
	}
}

func (c *Client) Self() platform.Actor {
	return c.self
}

func (c *Client) Send(_ context.Context, chatID int64, text string, opts platform.SendOptions) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode(opts.Format)
	msg.ReplyToMessageID = opts.ReplyTo
	msg.DisableNotification = opts.Silent
	msg.DisableWebPagePreview = true
	if len(opts.Buttons) > 0 {
		msg.ReplyMarkup = keyboard(opts.Buttons)
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", classify(err))
	}
	return sent.MessageID, nil
}

func (c *Client) Edit(_ context.Context, chatID int64, messageID int, text string, format platform.Format) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = parseMode(format)
	return c.request("edit message", edit)
}

func (c *Client) Delete(_ context.Context, chatID int64, messageID int) error {
	return c.request("delete message", tgbotapi.NewDeleteMessage(chatID, messageID))
}

func (c *Client) Restrict(_ context.Context, chatID, userID int64, perms platform.Permissions, until time.Time) error {
	return c.request("restrict member", tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		UntilDate:        unixOrZero(until),
		Permissions:      chatPermissions(perms),
	})
}

func (c *Client) Ban(_ context.Context, chatID, userID int64, until time.Time) error {
	return c.request("ban member", tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		UntilDate:        unixOrZero(until),
	})
}

func (c *Client) Unban(_ context.Context, chatID, userID int64) error {
	return c.request("unban member", tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	})
}

func (c *Client) GetMember(_ context.Context, chatID, userID int64) (platform.Member, error) {
	m, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return platform.Member{}, fmt.Errorf("get chat member: %w", classify(err))
	}
	return platform.Member{User: actor(m.User), Status: platform.MemberStatus(m.Status)}, nil
}

func (c *Client) GetChat(_ context.Context, chatID int64) (platform.Chat, error) {
	ch, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return platform.Chat{}, fmt.Errorf("get chat: %w", classify(err))
	}
	return chat(&ch), nil
}

func (c *Client) SetChatPermissions(_ context.Context, chatID int64, perms platform.Permissions) error {
	return c.request("set chat permissions", tgbotapi.SetChatPermissionsConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		Permissions: chatPermissions(perms),
	})
}

func (c *Client) SetChatTitle(_ context.Context, chatID int64, title string) error {
	return c.request("set chat title", tgbotapi.NewChatTitle(chatID, title))
}

func (c *Client) SetChatDescription(_ context.Context, chatID int64, description string) error {
	return c.request("set chat description", tgbotapi.NewChatDescription(chatID, description))
}

func (c *Client) Pin(_ context.Context, chatID int64, messageID int, silent bool) error {
	return c.request("pin message", tgbotapi.PinChatMessageConfig{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: silent,
	})
}

func (c *Client) Unpin(_ context.Context, chatID int64, messageID int) error {
	return c.request("unpin message", tgbotapi.UnpinChatMessageConfig{ChatID: chatID, MessageID: messageID})
}

func (c *Client) UnpinAll(_ context.Context, chatID int64) error {
	return c.request("unpin all messages", tgbotapi.UnpinAllChatMessagesConfig{ChatID: chatID})
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	return c.request("answer callback", tgbotapi.NewCallback(callbackID, text))
}

func (c *Client) request(op string, cfg tgbotapi.Chattable) error {
	if _, err := c.api.Request(cfg); err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

// Helper methods

func parseMode(f platform.Format) string {
	switch f {
	case platform.FormatSimple:
		return tgbotapi.ModeMarkdown
	case platform.FormatRich:
		return tgbotapi.ModeHTML
	default:
		return ""
	}
}

func keyboard(rows [][]platform.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func chatPermissions(p platform.Permissions) *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{
		CanSendMessages:       p.SendMessages,
		CanSendMediaMessages:  p.SendMedia,
		CanSendPolls:          p.SendPolls,
		CanSendOtherMessages:  p.SendOther,
		CanAddWebPagePreviews: p.AddWebPagePreviews,
		CanChangeInfo:         p.ChangeInfo,
		CanInviteUsers:        p.InviteUsers,
		CanPinMessages:        p.PinMessages,
	}
}

// unixOrZero maps a zero time to 0, which the Bot API reads as forever.
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func actor(u *tgbotapi.User) platform.Actor {
	if u == nil {
		return platform.Actor{}
	}
	return platform.Actor{
		ID:          u.ID,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Username:    u.UserName,
		IsBot:       u.IsBot,
	}
}

func chat(c *tgbotapi.Chat) platform.Chat {
	if c == nil {
		return platform.Chat{}
	}
	title := c.Title
	if title == "" {
		title = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return platform.Chat{ID: c.ID, Title: title, Type: c.Type}
}

var _ platform.Client = (*Client)(nil)
