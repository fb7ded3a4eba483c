package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ihiteshgupta/groupguard/internal/moderation"
)

// Settings handlers

func (h *Handler) handleSetWarnLimit(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return NewUsageError(fmt.Sprintf("/setwarnlimit <n> (currently %d)", h.settings.WarnLimit()))
	}
	n, err := strconv.Atoi(inv.Args[0])
	if err != nil || n < 1 {
		return NewValidationError("The warn limit must be a whole number of at least 1.")
	}
	if err := h.settings.SetWarnLimit(ctx, n); err != nil {
		return err
	}
	h.say(ctx, inv, fmt.Sprintf("✅ Warn limit set to %d.", n))
	return nil
}

func (h *Handler) handleSetWarnAction(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return NewUsageError(fmt.Sprintf("/setwarnaction <mute|kick|ban> (currently %s)", h.settings.WarnAction()))
	}
	action, err := moderation.ParseWarnAction(strings.ToLower(inv.Args[0]))
	if err != nil {
		return NewValidationError("The warn action must be one of mute, kick or ban.")
	}
	if err := h.settings.SetWarnAction(ctx, action); err != nil {
		return err
	}
	h.say(ctx, inv, fmt.Sprintf("✅ Reaching the warn limit will now %s the user.", action))
	return nil
}

// handleSetLog accepts a chat id, "here" or "off".
func (h *Handler) handleSetLog(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return NewUsageError("/setlog <chat_id|here|off>")
	}

	var chatID int64
	switch arg := strings.ToLower(inv.Args[0]); arg {
	case "off", "none", "0":
		h.settings.SetLogChat(ctx, 0)
		h.say(ctx, inv, "📝 Moderation log disabled.")
		return nil
	case "here":
		chatID = inv.Chat().ID
	default:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return NewValidationError("Invalid chat ID. Must be a number, here or off.")
		}
		chatID = id
	}

	h.settings.SetLogChat(ctx, chatID)
	h.say(ctx, inv, fmt.Sprintf("📝 Moderation log will be sent to <code>%d</code>.", chatID))
	return nil
}
