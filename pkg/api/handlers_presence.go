package api

import "context"

// Presence handlers

func (h *Handler) handleAFK(ctx context.Context, inv *Invocation) error {
	text, err := h.presence.Declare(ctx, inv.Actor(), inv.Rest(0))
	if err != nil {
		return NewInternalError(err)
	}
	h.say(ctx, inv, text)
	return nil
}
