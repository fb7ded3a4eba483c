// Package groups keeps the registry of conversations the bot belongs to.
package groups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/internal/store"
)

// VerifyResult summarises one verification pass.
type VerifyResult struct {
	Kept   int
	Pruned int
	Failed int
}

// Registry records conversations and prunes those the bot has left.
type Registry struct {
	repo   store.GroupRepository
	client platform.Client
	log    *zap.Logger
	now    func() time.Time

	probeTries  uint64
	probeBase   time.Duration
	probeMaxGap time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithProbeRetry sets how often and how patiently a transient probe failure is retried.
func WithProbeRetry(tries uint64, base, maxGap time.Duration) Option {
	return func(r *Registry) {
		r.probeTries = tries
		r.probeBase = base
		r.probeMaxGap = maxGap
	}
}

// NewRegistry creates a registry over repo using client for membership probes.
func NewRegistry(repo store.GroupRepository, client platform.Client, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		repo:        repo,
		client:      client,
		log:         log.Named("groups"),
		now:         time.Now,
		probeTries:  3,
		probeBase:   500 * time.Millisecond,
		probeMaxGap: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert records chat on first sight and refreshes title and activity afterwards.
func (r *Registry) Upsert(ctx context.Context, chat platform.Chat) error {
	if !chat.IsGroup() {
		return nil
	}
	now := r.now()
	// NeedsVerification only applies on insert; the next successful probe clears it.
	err := r.repo.Upsert(ctx, &store.Group{
		ID:                store.FormatID(chat.ID),
		Title:             chat.Title,
		FirstJoined:       now,
		LastActive:        now,
		NeedsVerification: true,
	})
	if err != nil {
		return fmt.Errorf("upsert group %d: %w", chat.ID, err)
	}
	return nil
}

// Remove drops the record for chatID. It reports whether one existed.
func (r *Registry) Remove(ctx context.Context, chatID int64) (bool, error) {
	removed, err := r.repo.Delete(ctx, store.FormatID(chatID))
	if err != nil {
		return false, fmt.Errorf("remove group %d: %w", chatID, err)
	}
	if removed {
		r.log.Info("group removed", zap.Int64("chat_id", chatID))
	}
	return removed, nil
}

// DisableNotifications stops broadcasts to chatID, typically after the
// platform refused a delivery.
func (r *Registry) DisableNotifications(ctx context.Context, chatID int64) error {
	if err := r.repo.SetNotificationsDisabled(ctx, store.FormatID(chatID), true); err != nil {
		return fmt.Errorf("disable notifications for group %d: %w", chatID, err)
	}
	r.log.Info("notifications disabled", zap.Int64("chat_id", chatID))
	return nil
}

// List returns every registered group.
func (r *Registry) List(ctx context.Context) ([]store.Group, error) {
	return r.repo.List(ctx)
}

// Count returns the number of registered groups.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.repo.Count(ctx)
}

// VerifyAll probes every recorded group. Groups the platform reports as
// not found are deleted; reachable ones are stamped verified with a fresh
// title. Groups are never added here.
func (r *Registry) VerifyAll(ctx context.Context) (VerifyResult, error) {
	var res VerifyResult

	list, err := r.repo.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list groups: %w", err)
	}

	for _, g := range list {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		chatID, err := store.ParseID(g.ID)
		if err != nil {
			r.log.Warn("skipping malformed group id", zap.String("id", g.ID))
			res.Failed++
			continue
		}

		chat, err := r.probe(ctx, chatID)
		switch {
		case platform.IsNotFound(err):
			if _, delErr := r.repo.Delete(ctx, g.ID); delErr != nil {
				r.log.Error("failed to prune group", zap.Int64("chat_id", chatID), zap.Error(delErr))
				res.Failed++
				continue
			}
			r.log.Info("pruned group", zap.Int64("chat_id", chatID), zap.String("title", g.Title))
			res.Pruned++
		case err != nil:
			r.log.Warn("group probe failed", zap.Int64("chat_id", chatID), zap.Error(err))
			res.Failed++
		default:
			if err := r.repo.MarkVerified(ctx, g.ID, chat.Title, r.now()); err != nil && !errors.Is(err, store.ErrNotFound) {
				r.log.Error("failed to mark group verified", zap.Int64("chat_id", chatID), zap.Error(err))
				res.Failed++
				continue
			}
			res.Kept++
		}
	}

	r.log.Info("group verification finished",
		zap.Int("kept", res.Kept), zap.Int("pruned", res.Pruned), zap.Int("failed", res.Failed))
	return res, nil
}

// probe fetches the chat and confirms the bot is still a member, retrying
// transient failures. Not-found is final; so is a left or kicked status, since
// public chats stay readable after the bot is removed.
func (r *Registry) probe(ctx context.Context, chatID int64) (platform.Chat, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.probeBase
	bo.MaxInterval = r.probeMaxGap
	bo.MaxElapsedTime = 0

	var chat platform.Chat
	op := func() error {
		c, err := r.client.GetChat(ctx, chatID)
		if err != nil {
			return permanentIfNotFound(err)
		}
		m, err := r.client.GetMember(ctx, chatID, r.client.Self().ID)
		if err != nil {
			return permanentIfNotFound(err)
		}
		if m.Status == platform.StatusLeft || m.Status == platform.StatusKicked {
			return backoff.Permanent(fmt.Errorf("bot is %s in chat %d: %w", m.Status, chatID, platform.ErrNotFound))
		}
		chat = c
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, r.probeTries), ctx))
	return chat, err
}

func permanentIfNotFound(err error) error {
	if platform.IsNotFound(err) {
		return backoff.Permanent(err)
	}
	return err
}
