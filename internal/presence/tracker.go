// Package presence tracks users who declared themselves away (AFK) and
// produces return and away notices from ordinary chat activity.
package presence

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/platform"
)

// DefaultReason is used when /afk is given no reason.
const DefaultReason = "AFK"

// NoticeKind distinguishes the two notices the tracker emits.
type NoticeKind int

const (
	NoticeReturn NoticeKind = iota
	NoticeAway
)

// Notice is an outbound message produced by activity.
type Notice struct {
	Kind   NoticeKind
	UserID int64
	Text   string
}

// Tracker records away statuses and resolves mentions against them.
type Tracker struct {
	store     Store
	usernames *lru.Cache[string, platform.Actor]
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker backed by store. usernameCacheSize bounds the
// @username directory used to resolve plain mentions.
func NewTracker(store Store, usernameCacheSize int, log *zap.Logger, opts ...Option) (*Tracker, error) {
	cache, err := lru.New[string, platform.Actor](usernameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("username cache: %w", err)
	}
	t := &Tracker{
		store:     store,
		usernames: cache,
		log:       log.Named("presence"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Remember records an actor's username so later @mentions can be resolved.
func (t *Tracker) Remember(a platform.Actor) {
	if a.Username == "" || a.IsBot {
		return
	}
	t.usernames.Add(strings.ToLower(a.Username), a)
}

// Declare marks actor as away, replacing any earlier status without reporting it.
func (t *Tracker) Declare(ctx context.Context, actor platform.Actor, reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}
	st := Status{Since: t.now(), Reason: reason, Name: actor.DisplayName}
	if err := t.store.Set(ctx, actor.ID, st); err != nil {
		return "", fmt.Errorf("save away status: %w", err)
	}
	t.log.Debug("user away", zap.Int64("user_id", actor.ID))
	return fmt.Sprintf("🌙 %s is now AFK!\n📝 Reason: <i>%s</i>", actor.Mention(), html.EscapeString(reason)), nil
}

// OnActivity clears the author's own status and reports every other
// mentioned user who is away. Mentioned users keep their status.
func (t *Tracker) OnActivity(ctx context.Context, msg platform.Message) ([]Notice, error) {
	now := t.now()
	var notices []Notice

	st, ok, err := t.store.Take(ctx, msg.From.ID)
	if err != nil {
		return nil, fmt.Errorf("clear away status: %w", err)
	}
	if ok {
		notices = append(notices, Notice{
			Kind:   NoticeReturn,
			UserID: msg.From.ID,
			Text: fmt.Sprintf("👋 Welcome back, %s!\n⏱️ You were AFK for %s.",
				msg.From.Mention(), FormatElapsed(now.Sub(st.Since))),
		})
	}

	for _, uid := range t.mentioned(msg) {
		st, ok, err := t.store.Get(ctx, uid)
		if err != nil {
			t.log.Warn("away lookup failed", zap.Int64("user_id", uid), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		who := platform.Actor{ID: uid, DisplayName: st.Name}
		notices = append(notices, Notice{
			Kind:   NoticeAway,
			UserID: uid,
			Text: fmt.Sprintf("⚠️ %s is AFK: <i>%s</i>\n⏱️ Since: %s ago",
				who.Mention(), html.EscapeString(st.Reason), FormatElapsed(now.Sub(st.Since))),
		})
	}
	return notices, nil
}

// Active returns how many users are currently away.
func (t *Tracker) Active(ctx context.Context) (int, error) {
	return t.store.Count(ctx)
}

// mentioned returns distinct user ids referenced by msg, in order, without
// the author.
func (t *Tracker) mentioned(msg platform.Message) []int64 {
	seen := map[int64]bool{msg.From.ID: true}
	var ids []int64
	add := func(id int64) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if msg.ReplyTo != nil && !msg.ReplyTo.From.IsBot {
		add(msg.ReplyTo.From.ID)
	}
	for _, m := range msg.Mentions {
		if m.UserID != 0 {
			add(m.UserID)
			continue
		}
		if a, ok := t.usernames.Get(strings.ToLower(strings.TrimPrefix(m.Username, "@"))); ok {
			add(a.ID)
		}
	}
	return ids
}

// FormatElapsed renders d as "1d 2h 3m", or "Ns" when under a minute.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d / time.Second)
	days, seconds := seconds/86400, seconds%86400
	hours, seconds := seconds/3600, seconds%3600
	minutes, seconds := seconds/60, seconds%60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
