package api

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/presence"
)

// Status handlers

func (h *Handler) handleID(ctx context.Context, inv *Invocation) error {
	text := fmt.Sprintf("🧾 Your ID: <code>%d</code>\n🗣️ Chat ID: <code>%d</code>", inv.Actor().ID, inv.Chat().ID)
	if target, ok := inv.ReplyTarget(); ok && target.ID != inv.Actor().ID {
		text += fmt.Sprintf("\n👤 %s: <code>%d</code>", target.Mention(), target.ID)
	}
	h.say(ctx, inv, text)
	return nil
}

// handleStats reports counts best effort; a failed lookup shows as "?".
func (h *Handler) handleStats(ctx context.Context, inv *Invocation) error {
	count := func(what string, fn func() (int, error)) string {
		n, err := fn()
		if err != nil {
			h.log.Warn("stats lookup failed", zap.String("what", what), zap.Error(err))
			return "?"
		}
		return fmt.Sprintf("%d", n)
	}

	maintenance := "off"
	if h.settings.Maintenance() {
		maintenance = "on"
	}

	lines := []string{
		"📊 <b>Bot Statistics:</b>",
		"• Groups: " + count("groups", func() (int, error) { return h.registry.Count(ctx) }),
		"• Sudo Admins: " + count("sudo", func() (int, error) { return h.sudo.Count(ctx) }),
		"• Uptime: " + presence.FormatElapsed(h.health.Uptime()),
		fmt.Sprintf("• Commands processed: %d", h.health.CommandsProcessed()),
		fmt.Sprintf("• Messages processed: %d", h.health.MessagesProcessed()),
		"• Moderation actions: " + count("actions", func() (int, error) { return h.actions.Count(ctx) }),
		"• AFK users: " + count("afk", func() (int, error) { return h.presence.Active(ctx) }),
		"• Maintenance: " + maintenance,
	}
	h.say(ctx, inv, strings.Join(lines, "\n"))
	return nil
}
