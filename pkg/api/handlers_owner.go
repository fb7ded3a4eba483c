package api

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/internal/scheduler"
	"github.com/ihiteshgupta/groupguard/internal/store"
)

// Owner handlers

func (h *Handler) handleShutdown(ctx context.Context, inv *Invocation) error {
	h.say(ctx, inv, "🛑 Bot is shutting down...")
	h.log.Info("shutdown requested", zap.Int64("user_id", inv.Actor().ID))
	h.exit(ExitShutdown)
	return nil
}

// handleRestart leaves a marker so the next process can confirm the restart
// in this chat, then exits with ExitRestart.
func (h *Handler) handleRestart(ctx context.Context, inv *Invocation) error {
	marker := scheduler.RestartMarker{ChatID: inv.Chat().ID, MessageID: inv.Message.ID}
	if err := scheduler.WriteRestartMarker(h.cfg.RestartMarkerPath, marker); err != nil {
		h.log.Error("failed to write restart marker", zap.Error(err))
	}
	h.say(ctx, inv, "🔄 Bot is restarting...")
	h.log.Info("restart requested", zap.Int64("user_id", inv.Actor().ID))
	h.exit(ExitRestart)
	return nil
}

// handleBroadcast sends the text to every group that still accepts
// notifications, paced by the configured rate.
func (h *Handler) handleBroadcast(ctx context.Context, inv *Invocation) error {
	message := strings.TrimSpace(inv.Rest(0))
	if message == "" {
		return NewUsageError("/broadcast <message>")
	}

	list, err := h.registry.List(ctx)
	if err != nil {
		return NewPersistenceError(err)
	}
	targets := list[:0]
	for _, g := range list {
		if !g.NotificationsDisabled {
			targets = append(targets, g)
		}
	}
	if len(targets) == 0 {
		h.say(ctx, inv, "❌ No groups found to broadcast to.")
		return nil
	}

	statusID := h.say(ctx, inv, fmt.Sprintf("🔄 Broadcasting to %d groups...", len(targets)))
	text := "📢 Broadcast:\n\n" + html.EscapeString(message)
	limiter := rate.NewLimiter(rate.Limit(h.cfg.BroadcastRate), 1)

	sent := 0
	for _, g := range targets {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if _, err := h.client.Send(ctx, g.ChatID(), text, platform.SendOptions{Format: platform.FormatRich}); err != nil {
			h.broadcastFailed(ctx, g, err)
			continue
		}
		sent++
	}

	summary := fmt.Sprintf("✅ Broadcast sent to %d/%d groups.", sent, len(targets))
	if statusID == 0 {
		h.say(ctx, inv, summary)
		return nil
	}
	if err := h.client.Edit(ctx, inv.Chat().ID, statusID, summary, platform.FormatNone); err != nil {
		h.say(ctx, inv, summary)
	}
	return nil
}

// broadcastFailed prunes groups the bot left and mutes groups it can no
// longer write to.
func (h *Handler) broadcastFailed(ctx context.Context, g store.Group, err error) {
	log := h.log.With(zap.String("group_id", g.ID), zap.Error(err))
	switch {
	case platform.IsNotFound(err):
		if _, rmErr := h.registry.Remove(ctx, g.ChatID()); rmErr != nil {
			log.Error("failed to prune group after broadcast", zap.NamedError("remove_error", rmErr))
			return
		}
		log.Info("pruned group during broadcast")
	case errors.Is(err, platform.ErrForbidden):
		if setErr := h.registry.DisableNotifications(ctx, g.ChatID()); setErr != nil {
			log.Error("failed to disable notifications", zap.NamedError("registry_error", setErr))
			return
		}
		log.Info("disabled notifications for group")
	default:
		log.Warn("broadcast delivery failed")
	}
}

func (h *Handler) handleSudoList(ctx context.Context, inv *Invocation) error {
	admins, err := h.sudo.List(ctx)
	if err != nil {
		return NewPersistenceError(err)
	}
	if len(admins) == 0 {
		h.say(ctx, inv, "📝 No sudo admins configured yet.")
		return nil
	}

	lines := make([]string, 0, len(admins))
	for i, a := range admins {
		lines = append(lines, fmt.Sprintf("%d. %s (ID: <code>%s</code>) - Added: %s",
			i+1, html.EscapeString(a.Name), a.ID, a.AddedDate.Format("2006-01-02")))
	}
	h.say(ctx, inv, "🔑 <b>Sudo Admins List:</b>\n\n"+strings.Join(lines, "\n"))
	return nil
}

func (h *Handler) handleSudoAdd(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return NewUsageError("/sudo_add <user_id> [name]")
	}
	userID, err := strconv.ParseInt(inv.Args[0], 10, 64)
	if err != nil {
		return NewValidationError("Invalid user ID. Must be a number.")
	}
	if h.evaluator.IsOwner(platform.Actor{ID: userID}) {
		h.say(ctx, inv, "ℹ️ The bot owner is always a sudo admin.")
		return nil
	}

	name := strings.TrimSpace(inv.Rest(1))
	if name == "" {
		name = fmt.Sprintf("Admin %d", userID)
	}
	added, err := h.sudo.Add(ctx, &store.SudoAdmin{
		ID:        store.FormatID(userID),
		Name:      name,
		AddedDate: h.now(),
		AddedBy:   store.FormatID(inv.Actor().ID),
	})
	if err != nil {
		return NewPersistenceError(err)
	}
	if !added {
		h.say(ctx, inv, fmt.Sprintf("⚠️ User %d is already a sudo admin.", userID))
		return nil
	}
	h.say(ctx, inv, fmt.Sprintf("✅ Added %s (ID: %d) as sudo admin.", html.EscapeString(name), userID))
	return nil
}

func (h *Handler) handleSudoRemove(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) != 1 {
		return NewUsageError("/sudo_remove <user_id>")
	}
	userID, err := strconv.ParseInt(inv.Args[0], 10, 64)
	if err != nil {
		return NewValidationError("Invalid user ID. Must be a number.")
	}

	removed, err := h.sudo.Remove(ctx, store.FormatID(userID))
	if errors.Is(err, store.ErrNotFound) {
		h.say(ctx, inv, fmt.Sprintf("⚠️ User %d is not a sudo admin.", userID))
		return nil
	}
	if err != nil {
		return NewPersistenceError(err)
	}
	h.say(ctx, inv, fmt.Sprintf("✅ Removed %s (ID: %d) from sudo admins.", html.EscapeString(removed.Name), userID))
	return nil
}

func (h *Handler) handleMaintenance(ctx context.Context, inv *Invocation) error {
	if h.settings.ToggleMaintenance(ctx) {
		h.say(ctx, inv, "🔧 Maintenance mode enabled. Only owner commands will work.")
		return nil
	}
	h.say(ctx, inv, "✅ Maintenance mode disabled. Bot is fully operational.")
	return nil
}

func (h *Handler) handleUpdateGroups(ctx context.Context, inv *Invocation) error {
	h.say(ctx, inv, "🔄 Verifying group memberships...")
	res, err := h.registry.VerifyAll(ctx)
	if err != nil {
		return NewPersistenceError(err)
	}
	text := fmt.Sprintf("✅ Group verification complete: %d kept, %d pruned.", res.Kept, res.Pruned)
	if res.Failed > 0 {
		text += fmt.Sprintf("\n⚠️ %d groups could not be checked.", res.Failed)
	}
	h.say(ctx, inv, text)
	return nil
}
