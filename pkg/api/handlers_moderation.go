package api

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/ihiteshgupta/groupguard/internal/moderation"
	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/internal/store"
)

const (
	defaultModLogEntries = 10
	maxModLogEntries     = 50
)

// Moderation command handlers

func (h *Handler) handleMute(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "mute")
	if err != nil {
		return err
	}

	args := inv.Args
	var d time.Duration
	if len(args) > 0 && moderation.LooksLikeDuration(args[0]) {
		if d, err = moderation.ParseDuration(args[0]); err != nil {
			return NewValidationError("Invalid duration. Use minutes (90) or a form like 1h30m or 2d.")
		}
		args = args[1:]
	}

	res, err := h.moderation.Mute(ctx, h.request(inv, target, strings.Join(args, " "), d))
	if err != nil {
		return moderationError("mute", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

func (h *Handler) handleUnmute(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "unmute")
	if err != nil {
		return err
	}
	res, err := h.moderation.Unmute(ctx, h.request(inv, target, inv.Rest(0), 0))
	if err != nil {
		return moderationError("unmute", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

func (h *Handler) handleKick(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "kick")
	if err != nil {
		return err
	}
	res, err := h.moderation.Kick(ctx, h.request(inv, target, inv.Rest(0), 0))
	if err != nil {
		return moderationError("kick", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

func (h *Handler) handleBan(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "ban")
	if err != nil {
		return err
	}
	res, err := h.moderation.Ban(ctx, h.request(inv, target, inv.Rest(0), 0))
	if err != nil {
		return moderationError("ban", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

func (h *Handler) handleTempBan(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "ban")
	if err != nil {
		return err
	}
	if len(inv.Args) == 0 {
		return NewUsageError("/tban <duration> [reason], e.g. /tban 1d spam")
	}
	d, err := moderation.ParseDuration(inv.Args[0])
	if err != nil {
		return NewValidationError("Invalid duration. Use minutes (90) or a form like 1h30m or 2d.")
	}

	res, err := h.moderation.TempBan(ctx, h.request(inv, target, inv.Rest(1), d))
	if err != nil {
		return moderationError("ban", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

func (h *Handler) handleUnban(ctx context.Context, inv *Invocation) error {
	if len(inv.Args) == 0 {
		return NewUsageError("/unban <user_id> [reason]")
	}
	userID, err := strconv.ParseInt(inv.Args[0], 10, 64)
	if err != nil {
		return NewValidationError("Invalid user ID. Must be a number.")
	}

	target := platform.Actor{ID: userID}
	res, err := h.moderation.Unban(ctx, h.request(inv, target, inv.Rest(1), 0))
	if err != nil {
		return moderationError("unban", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

func (h *Handler) handleWarn(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "warn")
	if err != nil {
		return err
	}
	res, err := h.moderation.Warn(ctx, h.request(inv, target, inv.Rest(0), 0))
	if err != nil {
		return moderationError("warn", err)
	}
	if res.Consequence != "" {
		h.health.RecordModeration(string(res.Consequence))
	}
	h.announce(ctx, inv, res)
	return nil
}

func (h *Handler) handleUnwarn(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "unwarn")
	if err != nil {
		return err
	}
	res, err := h.moderation.Unwarn(ctx, h.request(inv, target, inv.Rest(0), 0))
	if err != nil {
		return moderationError("unwarn", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

// handleWarns reports on the replied user, or on the caller without a reply.
func (h *Handler) handleWarns(ctx context.Context, inv *Invocation) error {
	target, ok := inv.ReplyTarget()
	if !ok {
		target = inv.Actor()
	}
	res := h.moderation.Warns(ctx, inv.Chat(), target)
	h.say(ctx, inv, res.Text)
	return nil
}

func (h *Handler) handleResetWarns(ctx context.Context, inv *Invocation) error {
	target, err := h.replyTarget(inv, "reset warnings for")
	if err != nil {
		return err
	}
	res, err := h.moderation.ResetWarns(ctx, h.request(inv, target, inv.Rest(0), 0))
	if err != nil {
		return moderationError("reset warnings", err)
	}
	h.announce(ctx, inv, res)
	return nil
}

// handleModLog lists the newest audited actions in this chat.
func (h *Handler) handleModLog(ctx context.Context, inv *Invocation) error {
	limit := defaultModLogEntries
	if len(inv.Args) > 0 {
		n, err := strconv.Atoi(inv.Args[0])
		if err != nil || n < 1 || n > maxModLogEntries {
			return NewValidationError(fmt.Sprintf("Entry count must be between 1 and %d.", maxModLogEntries))
		}
		limit = n
	}

	actions, err := h.actions.Recent(ctx, store.FormatID(inv.Chat().ID), limit)
	if err != nil {
		return NewPersistenceError(err)
	}
	if len(actions) == 0 {
		h.say(ctx, inv, "📭 No moderation actions recorded in this chat yet.")
		return nil
	}

	lines := make([]string, 0, len(actions)+1)
	lines = append(lines, "📜 <b>Recent moderation actions:</b>\n")
	for i, a := range actions {
		line := fmt.Sprintf("%d. %s <b>%s</b> <code>%s</code> by <code>%s</code>",
			i+1, a.CreatedAt.UTC().Format("2006-01-02 15:04"), a.Action, a.TargetID, a.ActorID)
		if a.Until.Valid {
			line += " until " + a.Until.Time.UTC().Format("2006-01-02 15:04")
		}
		if a.Reason != "" {
			line += " - " + html.EscapeString(a.Reason)
		}
		lines = append(lines, line)
	}
	h.say(ctx, inv, strings.Join(lines, "\n"))
	return nil
}

// Helper methods

// replyTarget resolves the author of the replied-to message. The bot never
// targets itself.
func (h *Handler) replyTarget(inv *Invocation, verb string) (platform.Actor, error) {
	target, ok := inv.ReplyTarget()
	if !ok {
		return platform.Actor{}, &CommandError{
			Code:    ErrValidation,
			Message: fmt.Sprintf("❗ Please reply to the user you want to %s.", verb),
		}
	}
	if target.ID == h.client.Self().ID {
		return platform.Actor{}, NewValidationError("I can't do that to myself.")
	}
	return target, nil
}

func (h *Handler) request(inv *Invocation, target platform.Actor, reason string, d time.Duration) moderation.Request {
	return moderation.Request{
		Chat:     inv.Chat(),
		Actor:    inv.Actor(),
		Target:   target,
		Reason:   reason,
		Duration: d,
	}
}

func (h *Handler) announce(ctx context.Context, inv *Invocation, res moderation.Result) {
	h.health.RecordModeration(inv.Name)
	h.say(ctx, inv, res.Text)
}

func moderationError(verb string, err error) error {
	switch {
	case errors.Is(err, moderation.ErrTargetIsStaff):
		return NewDeniedError(fmt.Sprintf("❌ I can't %s an admin.", verb))
	case errors.Is(err, moderation.ErrMissingDuration), errors.Is(err, moderation.ErrInvalidDuration):
		return NewValidationError("Invalid duration. Use minutes (90) or a form like 1h30m or 2d.")
	}
	return NewPlatformError(verb+" the user", err)
}
