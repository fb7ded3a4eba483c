package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/moderation"
	"github.com/ihiteshgupta/groupguard/internal/permission"
	"github.com/ihiteshgupta/groupguard/internal/platform"
)

const (
	callbackUnpinAllYes = "unpinall_yes"
	callbackUnpinAllNo  = "unpinall_no"

	purgeConfirmationTTL = 5 * time.Second
	maxSlowModeSeconds   = 3600
)

// Chat management handlers

func (h *Handler) handleSetTitle(ctx context.Context, inv *Invocation) error {
	title := strings.TrimSpace(inv.Rest(0))
	if title == "" {
		return NewUsageError("/settitle <title>")
	}
	if err := h.client.SetChatTitle(ctx, inv.Chat().ID, title); err != nil {
		return NewPlatformError("change the title", err)
	}
	h.say(ctx, inv, "✅ Chat title updated.")
	return nil
}

// handleSetDesc sets the description; no argument clears it.
func (h *Handler) handleSetDesc(ctx context.Context, inv *Invocation) error {
	desc := strings.TrimSpace(inv.Rest(0))
	if err := h.client.SetChatDescription(ctx, inv.Chat().ID, desc); err != nil {
		return NewPlatformError("change the description", err)
	}
	if desc == "" {
		h.say(ctx, inv, "✅ Chat description cleared.")
		return nil
	}
	h.say(ctx, inv, "✅ Chat description updated.")
	return nil
}

func (h *Handler) handleSlowMode(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		current := h.slowmode.Interval(inv.Chat().ID)
		if current == 0 {
			h.say(ctx, inv, "🐢 Slow mode is off. Usage: /slowmode <seconds|off>")
		} else {
			h.say(ctx, inv, fmt.Sprintf("🐢 Slow mode: one message every %d seconds.", int(current.Seconds())))
		}
		return nil
	}

	arg := strings.ToLower(inv.Args[0])
	if arg == "off" || arg == "0" {
		h.slowmode.Set(inv.Chat().ID, 0)
		h.say(ctx, inv, "🐢 Slow mode disabled.")
		return nil
	}
	seconds, err := strconv.Atoi(arg)
	if err != nil || seconds < 1 || seconds > maxSlowModeSeconds {
		return NewValidationError(fmt.Sprintf("Slow mode takes a number of seconds between 1 and %d, or off.", maxSlowModeSeconds))
	}
	h.slowmode.Set(inv.Chat().ID, time.Duration(seconds)*time.Second)
	h.say(ctx, inv, fmt.Sprintf("🐢 Slow mode enabled: one message every %d seconds per member.", seconds))
	return nil
}

// handleLock locks now; with a duration it also schedules the unlock.
func (h *Handler) handleLock(ctx context.Context, inv *Invocation) error {
	d, err := optionalDelay(inv)
	if err != nil {
		return err
	}
	chatID := inv.Chat().ID
	h.cancelLockJob(chatID)
	if err := h.client.SetChatPermissions(ctx, chatID, platform.NoPermissions()); err != nil {
		return NewPlatformError("lock the chat", err)
	}
	if d == 0 {
		h.say(ctx, inv, "🔒 Chat locked.")
		return nil
	}
	h.scheduleLockJob(chatID, d, platform.FullPermissions(), "🔓 Chat unlocked.")
	h.say(ctx, inv, fmt.Sprintf("🔒 Chat locked for %s.", moderation.FormatDuration(d)))
	return nil
}

func (h *Handler) handleUnlock(ctx context.Context, inv *Invocation) error {
	chatID := inv.Chat().ID
	h.cancelLockJob(chatID)
	if err := h.client.SetChatPermissions(ctx, chatID, platform.FullPermissions()); err != nil {
		return NewPlatformError("unlock the chat", err)
	}
	h.say(ctx, inv, "🔓 Chat unlocked.")
	return nil
}

func (h *Handler) handleNightMode(ctx context.Context, inv *Invocation) error {
	return h.switchMode(ctx, inv, platform.NoPermissions(),
		"🌙 Night mode activated. Group is now locked!",
		"🌙 Night mode will start in %s.",
		"lock the chat")
}

func (h *Handler) handleMorningMode(ctx context.Context, inv *Invocation) error {
	return h.switchMode(ctx, inv, platform.FullPermissions(),
		"☀️ Morning mode activated. Group is now unlocked!",
		"☀️ Morning mode will start in %s.",
		"unlock the chat")
}

// switchMode applies perms now, or after the optional delay argument.
func (h *Handler) switchMode(ctx context.Context, inv *Invocation, perms platform.Permissions, done, pending, action string) error {
	d, err := optionalDelay(inv)
	if err != nil {
		return err
	}
	chatID := inv.Chat().ID
	h.cancelLockJob(chatID)

	if d == 0 {
		if err := h.client.SetChatPermissions(ctx, chatID, perms); err != nil {
			return NewPlatformError(action, err)
		}
		h.say(ctx, inv, done)
		return nil
	}
	h.scheduleLockJob(chatID, d, perms, done)
	h.say(ctx, inv, fmt.Sprintf(pending, moderation.FormatDuration(d)))
	return nil
}

// handlePurge deletes every message from the replied one up to the command.
// Individual failures are skipped and only successes are counted.
func (h *Handler) handlePurge(ctx context.Context, inv *Invocation) error {
	if inv.Message.ReplyTo == nil {
		return &CommandError{Code: ErrValidation, Message: "❗ Please reply to a message to start purging from."}
	}
	start, end := inv.Message.ReplyTo.ID, inv.Message.ID
	if start > end {
		start, end = end, start
	}
	if n := end - start + 1; n > h.cfg.PurgeMax {
		return NewValidationError(fmt.Sprintf("I can purge at most %d messages at once.", h.cfg.PurgeMax))
	}

	chatID := inv.Chat().ID
	deleted := 0
	for id := start; id <= end; id++ {
		if err := h.client.Delete(ctx, chatID, id); err != nil {
			h.log.Debug("purge skipped message", zap.Int64("chat_id", chatID), zap.Int("message_id", id), zap.Error(err))
			continue
		}
		deleted++
	}

	confirmID, err := h.client.Send(ctx, chatID, fmt.Sprintf("🗑️ Purged %d messages.", deleted), platform.SendOptions{})
	if err != nil {
		return NewPlatformError("confirm the purge", err)
	}
	h.scheduler.After(purgeConfirmationTTL, "purge-confirmation", func(ctx context.Context) {
		if err := h.client.Delete(ctx, chatID, confirmID); err != nil {
			h.log.Debug("failed to delete purge confirmation", zap.Error(err))
		}
	})
	return nil
}

func (h *Handler) handlePin(ctx context.Context, inv *Invocation) error {
	if inv.Message.ReplyTo == nil {
		return &CommandError{Code: ErrValidation, Message: "❗ Please reply to the message you want to pin."}
	}
	silent := false
	if len(inv.Args) > 0 {
		switch strings.ToLower(inv.Args[0]) {
		case "silent", "quiet", "s", "q":
			silent = true
		}
	}
	if err := h.client.Pin(ctx, inv.Chat().ID, inv.Message.ReplyTo.ID, silent); err != nil {
		return NewPlatformError("pin the message", err)
	}
	h.say(ctx, inv, "📌 Message pinned successfully!")
	return nil
}

// handleUnpin unpins the replied message, or the latest pin without a reply.
func (h *Handler) handleUnpin(ctx context.Context, inv *Invocation) error {
	msgID := 0
	if inv.Message.ReplyTo != nil {
		msgID = inv.Message.ReplyTo.ID
	}
	if err := h.client.Unpin(ctx, inv.Chat().ID, msgID); err != nil {
		return NewPlatformError("unpin the message", err)
	}
	h.say(ctx, inv, "✅ Message unpinned successfully!")
	return nil
}

func (h *Handler) handleUnpinAll(ctx context.Context, inv *Invocation) error {
	_, err := h.client.Send(ctx, inv.Chat().ID,
		"Are you sure you want to unpin ALL pinned messages in this chat?",
		platform.SendOptions{
			ReplyTo: inv.Message.ID,
			Buttons: [][]platform.Button{{
				{Text: "✅ Yes", Data: callbackUnpinAllYes},
				{Text: "❌ No", Data: callbackUnpinAllNo},
			}},
		})
	if err != nil {
		return NewPlatformError("ask for confirmation", err)
	}
	return nil
}

// handleUnpinAllCallback re-checks the presser's admin status before acting.
func (h *Handler) handleUnpinAllCallback(ctx context.Context, cb platform.Callback) error {
	h.answer(ctx, cb, "")

	subj := permission.Subject{Actor: cb.From, Chat: cb.Chat}
	d := h.evaluator.Evaluate(ctx, subj, admin, true)
	if !d.Allowed {
		h.health.RecordDenial(permission.Admin.String())
		return h.client.Edit(ctx, cb.Chat.ID, cb.MessageID, d.Reason, platform.FormatNone)
	}

	if cb.Data != callbackUnpinAllYes {
		return h.client.Edit(ctx, cb.Chat.ID, cb.MessageID, "Operation cancelled.", platform.FormatNone)
	}
	if err := h.client.UnpinAll(ctx, cb.Chat.ID); err != nil {
		text := NewPlatformError("unpin all messages", err).Reply()
		return h.client.Edit(ctx, cb.Chat.ID, cb.MessageID, text, platform.FormatRich)
	}
	return h.client.Edit(ctx, cb.Chat.ID, cb.MessageID, "📌 All messages have been unpinned!", platform.FormatNone)
}

// Helper methods

// optionalDelay parses the first argument as a delay; no argument means now.
func optionalDelay(inv *Invocation) (time.Duration, error) {
	if len(inv.Args) == 0 {
		return 0, nil
	}
	d, err := moderation.ParseDuration(inv.Args[0])
	if err != nil {
		return 0, NewValidationError("Invalid delay. Use minutes (30) or a form like 1h30m.")
	}
	return d, nil
}

// scheduleLockJob replaces any pending lock change for the chat.
func (h *Handler) scheduleLockJob(chatID int64, delay time.Duration, perms platform.Permissions, announcement string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.lockJobs[chatID]; ok {
		h.scheduler.Cancel(prev)
	}
	var id string
	id = h.scheduler.After(delay, "chat-permissions", func(ctx context.Context) {
		h.mu.Lock()
		if h.lockJobs[chatID] == id {
			delete(h.lockJobs, chatID)
		}
		h.mu.Unlock()

		if err := h.client.SetChatPermissions(ctx, chatID, perms); err != nil {
			h.log.Error("scheduled permission change failed", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		if _, err := h.client.Send(ctx, chatID, announcement, platform.SendOptions{}); err != nil {
			h.log.Warn("failed to announce permission change", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	})
	h.lockJobs[chatID] = id
}

func (h *Handler) cancelLockJob(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.lockJobs[chatID]; ok {
		h.scheduler.Cancel(id)
		delete(h.lockJobs, chatID)
	}
}
