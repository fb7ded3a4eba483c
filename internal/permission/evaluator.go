// Package permission decides whether an actor may run a privileged operation.
package permission

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/platform"
)

// Capability is an authorization tier, weakest first.
type Capability int

const (
	Everyone Capability = iota
	Admin
	BotIsAdmin
	Owner
)

// String returns the string representation of the capability.
func (c Capability) String() string {
	switch c {
	case Everyone:
		return "everyone"
	case Admin:
		return "admin"
	case BotIsAdmin:
		return "bot_is_admin"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// Rejection messages per tier.
const (
	MsgAdminRequired      = "❌ Only admins can use this command."
	MsgBotAdminRequired   = "❌ I need admin privileges in this chat to do that."
	MsgOwnerRequired      = "❌ This command is only for the bot owner."
	MsgCouldNotVerify     = "⚠️ I couldn't verify your permissions right now. Please try again."
	msgAlternativesFailed = "❌ This command requires one of: %s."
)

// Subject identifies who is asking, where, and which message to answer.
type Subject struct {
	Actor     platform.Actor
	Chat      platform.Chat
	MessageID int
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allowed   bool
	Reason    string
	Satisfied Capability
	Attempted []Capability
	// Unverified is set when a membership query failed and the evaluator denied.
	Unverified bool
}

// Evaluator checks capabilities against the platform's membership data.
// Admin status is queried on every check and never cached.
type Evaluator struct {
	client  platform.Client
	ownerID string
	log     *zap.Logger
}

// NewEvaluator creates an evaluator for the given owner identifier.
func NewEvaluator(client platform.Client, ownerID int64, log *zap.Logger) *Evaluator {
	return &Evaluator{
		client:  client,
		ownerID: strconv.FormatInt(ownerID, 10),
		log:     log.Named("permission"),
	}
}

// IsOwner compares identifiers in their string form.
func (e *Evaluator) IsOwner(actor platform.Actor) bool {
	return strconv.FormatInt(actor.ID, 10) == e.ownerID
}

// IsAdmin reports whether userID is an administrator or the creator of chatID.
func (e *Evaluator) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := e.client.GetMember(ctx, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("get member %d in %d: %w", userID, chatID, err)
	}
	return member.Status.IsStaff(), nil
}

// Evaluate tries each required capability left to right and allows on the
// first one satisfied. An empty list means Everyone. Query failures count as
// unsatisfied, so the evaluator never grants on error. Unless silent, a denial
// is answered in the subject's chat.
func (e *Evaluator) Evaluate(ctx context.Context, subj Subject, required []Capability, silent bool) Decision {
	if len(required) == 0 {
		required = []Capability{Everyone}
	}

	d := Decision{Attempted: required}
	var queryErr error

	for _, c := range required {
		ok, err := e.check(ctx, subj, c)
		if err != nil {
			queryErr = err
			e.log.Warn("capability check failed",
				zap.String("capability", c.String()),
				zap.Int64("chat_id", subj.Chat.ID),
				zap.Int64("user_id", subj.Actor.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			d.Allowed = true
			d.Satisfied = c
			return d
		}
	}

	if queryErr != nil {
		d.Unverified = true
		d.Reason = MsgCouldNotVerify
	} else {
		d.Reason = rejection(required)
	}

	e.log.Debug("permission denied",
		zap.Int64("chat_id", subj.Chat.ID),
		zap.Int64("user_id", subj.Actor.ID),
		zap.String("required", joinCapabilities(required)),
		zap.Bool("unverified", d.Unverified),
	)

	if !silent {
		e.reply(ctx, subj, d.Reason)
	}
	return d
}

func (e *Evaluator) check(ctx context.Context, subj Subject, c Capability) (bool, error) {
	switch c {
	case Everyone:
		return true, nil
	case Owner:
		return e.IsOwner(subj.Actor), nil
	case Admin:
		return e.IsAdmin(ctx, subj.Chat.ID, subj.Actor.ID)
	case BotIsAdmin:
		return e.IsAdmin(ctx, subj.Chat.ID, e.client.Self().ID)
	default:
		return false, nil
	}
}

func (e *Evaluator) reply(ctx context.Context, subj Subject, text string) {
	_, err := e.client.Send(ctx, subj.Chat.ID, text, platform.SendOptions{ReplyTo: subj.MessageID})
	if err != nil {
		e.log.Warn("failed to send denial", zap.Int64("chat_id", subj.Chat.ID), zap.Error(err))
	}
}

func rejection(required []Capability) string {
	if len(required) == 1 {
		switch required[0] {
		case Admin:
			return MsgAdminRequired
		case BotIsAdmin:
			return MsgBotAdminRequired
		case Owner:
			return MsgOwnerRequired
		}
	}
	return fmt.Sprintf(msgAlternativesFailed, joinCapabilities(required))
}

func joinCapabilities(cs []Capability) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
