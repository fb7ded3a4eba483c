// Package moderation implements warnings and timed restrictions: mute, kick,
// ban, temporary ban and their reversals.
package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/internal/state"
	"github.com/ihiteshgupta/groupguard/internal/store"
)

// ErrTargetIsStaff is returned when an action targets an administrator or the creator.
var ErrTargetIsStaff = errors.New("target is staff")

// WarnMuteDuration is how long the mute consequence of the warn limit lasts.
const WarnMuteDuration = 24 * time.Hour

// Request describes one moderation action.
type Request struct {
	Chat     platform.Chat
	Actor    platform.Actor
	Target   platform.Actor
	Reason   string
	Duration time.Duration
}

// Result is the outcome of an action, with an announcement in rich markup.
type Result struct {
	Text  string
	Until time.Time
	Count int
	// Consequence is the action applied by reaching the warn limit, if any.
	Consequence WarnAction
}

// Service performs moderation actions against the platform and keeps the
// local warning and restriction state.
type Service struct {
	client   platform.Client
	settings *Settings
	warnings *WarningBook
	tracker  *Tracker
	modlog   *Logger
	actions  store.ActionRepository
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithActions records every action in the audit repository.
func WithActions(repo store.ActionRepository) Option {
	return func(s *Service) { s.actions = repo }
}

// WithTracker shares a restriction tracker.
func WithTracker(t *Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// NewService creates a moderation service.
func NewService(client platform.Client, settings *Settings, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		client:   client,
		settings: settings,
		warnings: NewWarningBook(),
		log:      log.Named("moderation"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = NewTracker(log)
	}
	s.modlog = NewLogger(client, settings, log)
	return s
}

// Settings returns the shared runtime settings.
func (s *Service) Settings() *Settings {
	return s.settings
}

// Tracker returns the restriction tracker.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// Mute revokes every sending permission until now + Duration, defaulting to
// one hour.
func (s *Service) Mute(ctx context.Context, req Request) (Result, error) {
	if err := s.ensureNotStaff(ctx, req, "mute"); err != nil {
		return Result{}, err
	}
	d := req.Duration
	if d <= 0 {
		d = DefaultMuteDuration
	}
	now := s.now()
	until := now.Add(d)

	if err := s.client.Restrict(ctx, req.Chat.ID, req.Target.ID, platform.NoPermissions(), until); err != nil {
		return Result{}, fmt.Errorf("restrict %d: %w", req.Target.ID, err)
	}
	s.record(ctx, req, "mute", state.TriggerMute, until, now)
	s.emit(ctx, req, "mute", d, now)

	text := fmt.Sprintf("🔇 Muted %s for %s.", req.Target.Mention(), FormatDuration(d))
	return Result{Text: withReason(text, req.Reason), Until: until}, nil
}

// Unmute restores the default permission set.
func (s *Service) Unmute(ctx context.Context, req Request) (Result, error) {
	now := s.now()
	if err := s.client.Restrict(ctx, req.Chat.ID, req.Target.ID, platform.FullPermissions(), time.Time{}); err != nil {
		return Result{}, fmt.Errorf("restrict %d: %w", req.Target.ID, err)
	}
	s.record(ctx, req, "unmute", state.TriggerUnmute, time.Time{}, now)
	s.emit(ctx, req, "unmute", 0, now)

	text := fmt.Sprintf("🔊 Unmuted %s.", req.Target.Mention())
	return Result{Text: withReason(text, req.Reason)}, nil
}

// Kick removes the target while allowing them to rejoin.
func (s *Service) Kick(ctx context.Context, req Request) (Result, error) {
	if err := s.ensureNotStaff(ctx, req, "kick"); err != nil {
		return Result{}, err
	}
	now := s.now()
	if err := s.kick(ctx, req.Chat.ID, req.Target.ID); err != nil {
		return Result{}, err
	}
	s.record(ctx, req, "kick", state.TriggerKick, time.Time{}, now)
	s.emit(ctx, req, "kick", 0, now)

	text := fmt.Sprintf("👢 Kicked %s.", req.Target.Mention())
	return Result{Text: withReason(text, req.Reason)}, nil
}

// Ban removes the target permanently.
func (s *Service) Ban(ctx context.Context, req Request) (Result, error) {
	if err := s.ensureNotStaff(ctx, req, "ban"); err != nil {
		return Result{}, err
	}
	now := s.now()
	if err := s.client.Ban(ctx, req.Chat.ID, req.Target.ID, time.Time{}); err != nil {
		return Result{}, fmt.Errorf("ban %d: %w", req.Target.ID, err)
	}
	s.record(ctx, req, "ban", state.TriggerBan, time.Time{}, now)
	s.emit(ctx, req, "ban", 0, now)

	text := fmt.Sprintf("🚫 Banned %s.", req.Target.Mention())
	return Result{Text: withReason(text, req.Reason)}, nil
}

// TempBan bans until now + Duration. A duration is required.
func (s *Service) TempBan(ctx context.Context, req Request) (Result, error) {
	if req.Duration <= 0 {
		return Result{}, ErrMissingDuration
	}
	if err := s.ensureNotStaff(ctx, req, "ban"); err != nil {
		return Result{}, err
	}
	now := s.now()
	until := now.Add(req.Duration)
	if err := s.client.Ban(ctx, req.Chat.ID, req.Target.ID, until); err != nil {
		return Result{}, fmt.Errorf("ban %d: %w", req.Target.ID, err)
	}
	s.record(ctx, req, "tban", state.TriggerBan, until, now)
	s.emit(ctx, req, "tban", req.Duration, now)

	text := fmt.Sprintf("⏳ Banned %s for %s.", req.Target.Mention(), FormatDuration(req.Duration))
	return Result{Text: withReason(text, req.Reason), Until: until}, nil
}

// Unban lifts a ban on a user given only by id. The display name is resolved
// best effort.
func (s *Service) Unban(ctx context.Context, req Request) (Result, error) {
	if req.Target.DisplayName == "" {
		req.Target.DisplayName = s.resolveName(ctx, req.Chat.ID, req.Target.ID)
	}
	now := s.now()
	if err := s.client.Unban(ctx, req.Chat.ID, req.Target.ID); err != nil {
		return Result{}, fmt.Errorf("unban %d: %w", req.Target.ID, err)
	}
	s.record(ctx, req, "unban", state.TriggerUnban, time.Time{}, now)
	s.emit(ctx, req, "unban", 0, now)

	text := fmt.Sprintf("✅ Unbanned %s.", req.Target.Mention())
	return Result{Text: withReason(text, req.Reason)}, nil
}

// Warn adds a warning. Reaching the warn limit resets the count and applies
// the configured consequence; its outcome is appended to the announcement.
func (s *Service) Warn(ctx context.Context, req Request) (Result, error) {
	if err := s.ensureNotStaff(ctx, req, "warn"); err != nil {
		return Result{}, err
	}
	now := s.now()
	limit := s.settings.WarnLimit()
	out := s.warnings.Warn(req.Chat.ID, req.Target.ID, req.Reason, limit)

	s.audit(ctx, req, "warn", "", "", time.Time{}, now)
	s.emit(ctx, req, "warn", 0, now)

	text := fmt.Sprintf("⚠️ %s has been warned (%d/%d).", req.Target.Mention(), out.Count, limit)
	res := Result{Text: withReason(text, req.Reason), Count: out.Count}
	if !out.LimitReached {
		return res, nil
	}

	res.Count = 0
	res.Consequence = s.settings.WarnAction()
	consequence, err := s.applyConsequence(ctx, req, res.Consequence, now)
	if err != nil {
		s.log.Error("failed to apply warn consequence",
			zap.Int64("chat_id", req.Chat.ID),
			zap.Int64("user_id", req.Target.ID),
			zap.String("action", string(res.Consequence)),
			zap.Error(err),
		)
		consequence = fmt.Sprintf("❗ Warn limit reached, but I couldn't %s them: %s", res.Consequence, html.EscapeString(err.Error()))
	}
	res.Text += "\n" + consequence
	return res, nil
}

func (s *Service) applyConsequence(ctx context.Context, req Request, action WarnAction, now time.Time) (string, error) {
	req.Reason = fmt.Sprintf("reached %d warnings", s.settings.WarnLimit())
	switch action {
	case WarnActionKick:
		if err := s.kick(ctx, req.Chat.ID, req.Target.ID); err != nil {
			return "", err
		}
		s.record(ctx, req, "kick", state.TriggerKick, time.Time{}, now)
		s.emit(ctx, req, "kick", 0, now)
		return fmt.Sprintf("👢 Warn limit reached: %s has been kicked.", req.Target.Mention()), nil
	case WarnActionBan:
		if err := s.client.Ban(ctx, req.Chat.ID, req.Target.ID, time.Time{}); err != nil {
			return "", fmt.Errorf("ban %d: %w", req.Target.ID, err)
		}
		s.record(ctx, req, "ban", state.TriggerBan, time.Time{}, now)
		s.emit(ctx, req, "ban", 0, now)
		return fmt.Sprintf("🚫 Warn limit reached: %s has been banned.", req.Target.Mention()), nil
	default:
		until := now.Add(WarnMuteDuration)
		if err := s.client.Restrict(ctx, req.Chat.ID, req.Target.ID, platform.NoPermissions(), until); err != nil {
			return "", fmt.Errorf("restrict %d: %w", req.Target.ID, err)
		}
		s.record(ctx, req, "mute", state.TriggerMute, until, now)
		s.emit(ctx, req, "mute", WarnMuteDuration, now)
		return fmt.Sprintf("🔇 Warn limit reached: %s has been muted for %s.", req.Target.Mention(), FormatDuration(WarnMuteDuration)), nil
	}
}

// Unwarn removes one active warning, never going below zero.
func (s *Service) Unwarn(ctx context.Context, req Request) (Result, error) {
	count, ok := s.warnings.Unwarn(req.Chat.ID, req.Target.ID)
	if !ok {
		return Result{Text: fmt.Sprintf("ℹ️ %s has no warnings.", req.Target.Mention())}, nil
	}
	now := s.now()
	s.audit(ctx, req, "unwarn", "", "", time.Time{}, now)
	s.emit(ctx, req, "unwarn", 0, now)

	text := fmt.Sprintf("✅ Removed a warning from %s (%d/%d).", req.Target.Mention(), count, s.settings.WarnLimit())
	return Result{Text: withReason(text, req.Reason), Count: count}, nil
}

// Warns reports the active count and the reasons behind it.
func (s *Service) Warns(_ context.Context, chat platform.Chat, target platform.Actor) Result {
	count, reasons := s.warnings.Get(chat.ID, target.ID)
	if count == 0 {
		return Result{Text: fmt.Sprintf("ℹ️ %s has no warnings.", target.Mention())}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s has %d/%d warnings:", target.Mention(), count, s.settings.WarnLimit())
	for i, r := range reasons {
		if r == "" {
			r = "No reason given"
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, html.EscapeString(r))
	}
	return Result{Text: b.String(), Count: count}
}

// ResetWarns clears the count and history.
func (s *Service) ResetWarns(ctx context.Context, req Request) (Result, error) {
	prior := s.warnings.Reset(req.Chat.ID, req.Target.ID)
	now := s.now()
	s.audit(ctx, req, "resetwarns", "", "", time.Time{}, now)
	s.emit(ctx, req, "resetwarns", 0, now)

	text := fmt.Sprintf("🔄 Reset warnings for %s (had %d).", req.Target.Mention(), prior)
	return Result{Text: withReason(text, req.Reason), Count: prior}, nil
}

func (s *Service) kick(ctx context.Context, chatID, userID int64) error {
	if err := s.client.Ban(ctx, chatID, userID, time.Time{}); err != nil {
		return fmt.Errorf("ban %d: %w", userID, err)
	}
	if err := s.client.Unban(ctx, chatID, userID); err != nil {
		return fmt.Errorf("unban %d: %w", userID, err)
	}
	return nil
}

// ensureNotStaff fails closed: an unverifiable target is refused.
func (s *Service) ensureNotStaff(ctx context.Context, req Request, verb string) error {
	member, err := s.client.GetMember(ctx, req.Chat.ID, req.Target.ID)
	if err != nil {
		return fmt.Errorf("check target %d: %w", req.Target.ID, err)
	}
	if member.Status.IsStaff() {
		return fmt.Errorf("cannot %s staff: %w", verb, ErrTargetIsStaff)
	}
	return nil
}

func (s *Service) resolveName(ctx context.Context, chatID, userID int64) string {
	member, err := s.client.GetMember(ctx, chatID, userID)
	if err == nil && member.User.DisplayName != "" {
		return member.User.DisplayName
	}
	return fmt.Sprintf("User %d", userID)
}

func (s *Service) record(ctx context.Context, req Request, action string, trigger state.Trigger, until, now time.Time) {
	from, to, err := s.tracker.Apply(ctx, req.Chat.ID, req.Target.ID, trigger, until, now)
	if err != nil {
		s.log.Warn("restriction state out of sync",
			zap.Int64("chat_id", req.Chat.ID),
			zap.Int64("user_id", req.Target.ID),
			zap.String("trigger", trigger.String()),
			zap.Error(err),
		)
	}
	s.audit(ctx, req, action, string(from), string(to), until, now)
}

func (s *Service) audit(ctx context.Context, req Request, action, from, to string, until, now time.Time) {
	if s.actions == nil {
		return
	}
	a := &store.Action{
		Action:    action,
		ChatID:    store.FormatID(req.Chat.ID),
		ActorID:   store.FormatID(req.Actor.ID),
		TargetID:  store.FormatID(req.Target.ID),
		FromState: from,
		ToState:   to,
		Until:     sql.NullTime{Time: until, Valid: !until.IsZero()},
		Reason:    req.Reason,
		CreatedAt: now,
	}
	if err := s.actions.Record(ctx, a); err != nil {
		s.log.Error("failed to record moderation action", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) emit(ctx context.Context, req Request, action string, d time.Duration, now time.Time) {
	s.modlog.Emit(ctx, LogEntry{
		Action:   action,
		Chat:     req.Chat,
		Actor:    req.Actor,
		Target:   req.Target,
		At:       now,
		Duration: d,
		Reason:   req.Reason,
	})
}

func withReason(text, reason string) string {
	if reason == "" {
		return text
	}
	return text + "\nReason: " + html.EscapeString(reason)
}
