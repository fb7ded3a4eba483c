package state

import (
	"context"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
)

// TransitionCallback is called when a state transition occurs.
type TransitionCallback func(ctx context.Context, from, to State, trigger Trigger)

// Machine tracks the restriction lifecycle of a single (chat, user) pair.
//
//	unrestricted --mute--> muted --unmute/expire--> unrestricted
//	unrestricted --ban---> banned --unban/expire--> unrestricted
//	muted --ban--> banned, banned --mute--> muted
//	kick always ends unrestricted; mute while muted extends the mute.
type Machine struct {
	sm          *stateless.StateMachine
	callbacks   []TransitionCallback
	callbacksMu sync.RWMutex

	untilMu sync.Mutex
	until   time.Time
}

// NewMachine creates a new state machine starting in the given state.
func NewMachine(initial State) *Machine {
	m := &Machine{
		callbacks: make([]TransitionCallback, 0),
	}

	sm := stateless.NewStateMachine(initial)

	sm.Configure(StateUnrestricted).
		Permit(TriggerMute, StateMuted).
		Permit(TriggerBan, StateBanned).
		PermitReentry(TriggerKick).
		Ignore(TriggerUnmute).
		Ignore(TriggerUnban).
		Ignore(TriggerExpire)

	sm.Configure(StateMuted).
		PermitReentry(TriggerMute).
		Permit(TriggerUnmute, StateUnrestricted).
		Permit(TriggerExpire, StateUnrestricted).
		Permit(TriggerBan, StateBanned).
		Permit(TriggerKick, StateUnrestricted).
		Ignore(TriggerUnban)

	sm.Configure(StateBanned).
		PermitReentry(TriggerBan).
		Permit(TriggerUnban, StateUnrestricted).
		Permit(TriggerExpire, StateUnrestricted).
		Permit(TriggerMute, StateMuted).
		Permit(TriggerKick, StateUnrestricted).
		Ignore(TriggerUnmute)

	sm.OnTransitioned(func(ctx context.Context, t stateless.Transition) {
		m.callbacksMu.RLock()
		callbacks := make([]TransitionCallback, len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.callbacksMu.RUnlock()

		from := t.Source.(State)
		to := t.Destination.(State)
		trigger := t.Trigger.(Trigger)

		for _, cb := range callbacks {
			cb(ctx, from, to, trigger)
		}
	})

	m.sm = sm
	return m
}

// State returns the current state.
func (m *Machine) State(ctx context.Context) (State, error) {
	state, err := m.sm.State(ctx)
	if err != nil {
		return "", err
	}
	return state.(State), nil
}

// Fire triggers a state transition and records the restriction's expiry.
// A zero until means the restriction has no expiry.
func (m *Machine) Fire(ctx context.Context, trigger Trigger, until time.Time) error {
	if err := m.sm.FireCtx(ctx, trigger); err != nil {
		return err
	}
	m.untilMu.Lock()
	defer m.untilMu.Unlock()
	switch trigger {
	case TriggerMute, TriggerBan:
		m.until = until
	default:
		m.until = time.Time{}
	}
	return nil
}

// Until returns the expiry of the current restriction, zero if none.
func (m *Machine) Until() time.Time {
	m.untilMu.Lock()
	defer m.untilMu.Unlock()
	return m.until
}

// Refresh fires TriggerExpire when a timed restriction has lapsed by now.
// The platform lifts the restriction itself; this only mirrors it locally.
func (m *Machine) Refresh(ctx context.Context, now time.Time) (State, error) {
	current, err := m.State(ctx)
	if err != nil {
		return "", err
	}
	until := m.Until()
	if current.IsRestricted() && !until.IsZero() && !now.Before(until) {
		if err := m.Fire(ctx, TriggerExpire, time.Time{}); err != nil {
			return current, err
		}
		return StateUnrestricted, nil
	}
	return current, nil
}

// OnTransition registers a callback to be called on state transitions.
func (m *Machine) OnTransition(cb TransitionCallback) {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}
