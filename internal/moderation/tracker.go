package moderation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/state"
)

type restrictionKey struct {
	chatID int64
	userID int64
}

// Tracker mirrors each (chat, user) restriction lifecycle locally. The
// platform enforces expiry; the tracker notices lapsed restrictions lazily
// on the next lookup.
type Tracker struct {
	mu       sync.Mutex
	machines map[restrictionKey]*state.Machine
	hooks    []state.TransitionCallback
	log      *zap.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(log *zap.Logger) *Tracker {
	return &Tracker{
		machines: make(map[restrictionKey]*state.Machine),
		log:      log.Named("tracker"),
	}
}

// OnTransition registers a hook invoked on every tracked transition.
func (t *Tracker) OnTransition(cb state.TransitionCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, cb)
}

func (t *Tracker) machine(chatID, userID int64) *state.Machine {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := restrictionKey{chatID, userID}
	m, ok := t.machines[key]
	if ok {
		return m
	}
	m = state.NewMachine(state.StateUnrestricted)
	m.OnTransition(func(ctx context.Context, from, to state.State, trigger state.Trigger) {
		t.log.Debug("restriction transition",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.String("trigger", trigger.String()),
		)
		t.mu.Lock()
		hooks := make([]state.TransitionCallback, len(t.hooks))
		copy(hooks, t.hooks)
		t.mu.Unlock()
		for _, h := range hooks {
			h(ctx, from, to, trigger)
		}
	})
	t.machines[key] = m
	return m
}

// Apply fires trigger for the pair, first expiring a lapsed restriction.
// It returns the states before and after.
func (t *Tracker) Apply(ctx context.Context, chatID, userID int64, trigger state.Trigger, until, now time.Time) (from, to state.State, err error) {
	m := t.machine(chatID, userID)
	from, err = m.Refresh(ctx, now)
	if err != nil {
		return "", "", err
	}
	if err := m.Fire(ctx, trigger, until); err != nil {
		return from, from, err
	}
	to, err = m.State(ctx)
	return from, to, err
}

// State returns the pair's current state and restriction expiry.
func (t *Tracker) State(ctx context.Context, chatID, userID int64, now time.Time) (state.State, time.Time, error) {
	m := t.machine(chatID, userID)
	s, err := m.Refresh(ctx, now)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, m.Until(), nil
}
