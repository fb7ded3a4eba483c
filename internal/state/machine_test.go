package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func current(t *testing.T, m *Machine) State {
	t.Helper()
	s, err := m.State(context.Background())
	require.NoError(t, err)
	return s
}

func TestNewMachine(t *testing.T) {
	m := NewMachine(StateUnrestricted)
	require.NotNil(t, m)

	state, err := m.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUnrestricted, state)
	assert.True(t, m.Until().IsZero())
}

func TestMachine_MuteUnmute(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(StateUnrestricted)
	until := time.Now().Add(time.Hour)

	require.NoError(t, m.Fire(ctx, TriggerMute, until))
	assert.Equal(t, StateMuted, current(t, m))
	assert.Equal(t, until, m.Until())

	require.NoError(t, m.Fire(ctx, TriggerUnmute, time.Time{}))
	assert.Equal(t, StateUnrestricted, current(t, m))
	assert.True(t, m.Until().IsZero())
}

func TestMachine_MuteExtends(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(StateUnrestricted)
	first := time.Now().Add(time.Hour)
	second := first.Add(time.Hour)

	require.NoError(t, m.Fire(ctx, TriggerMute, first))
	require.NoError(t, m.Fire(ctx, TriggerMute, second))
	assert.Equal(t, StateMuted, current(t, m))
	assert.Equal(t, second, m.Until())
}

func TestMachine_BanFlow(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(StateUnrestricted)

	require.NoError(t, m.Fire(ctx, TriggerBan, time.Time{}))
	assert.Equal(t, StateBanned, current(t, m))

	require.NoError(t, m.Fire(ctx, TriggerUnban, time.Time{}))
	assert.Equal(t, StateUnrestricted, current(t, m))
}

func TestMachine_IdempotentLifts(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(StateUnrestricted)

	assert.NoError(t, m.Fire(ctx, TriggerUnmute, time.Time{}))
	assert.NoError(t, m.Fire(ctx, TriggerUnban, time.Time{}))
	assert.NoError(t, m.Fire(ctx, TriggerExpire, time.Time{}))
	assert.Equal(t, StateUnrestricted, current(t, m))
}

func TestMachine_KickFromAnyState(t *testing.T) {
	ctx := context.Background()

	for _, initial := range []State{StateUnrestricted, StateMuted, StateBanned} {
		t.Run(initial.String(), func(t *testing.T) {
			m := NewMachine(initial)
			require.NoError(t, m.Fire(ctx, TriggerKick, time.Time{}))
			assert.Equal(t, StateUnrestricted, current(t, m))
		})
	}
}

func TestMachine_RefreshExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(StateUnrestricted)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Fire(ctx, TriggerMute, now.Add(30*time.Minute)))

	s, err := m.Refresh(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StateMuted, s)

	s, err = m.Refresh(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StateUnrestricted, s)
	assert.Equal(t, StateUnrestricted, current(t, m))
}

func TestMachine_RefreshPermanentBan(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(StateUnrestricted)
	require.NoError(t, m.Fire(ctx, TriggerBan, time.Time{}))

	s, err := m.Refresh(ctx, time.Now().Add(1000*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StateBanned, s)
}

func TestMachine_OnTransition(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(StateUnrestricted)

	var transitions []struct {
		from, to State
		trigger  Trigger
	}

	m.OnTransition(func(ctx context.Context, from, to State, trigger Trigger) {
		transitions = append(transitions, struct {
			from, to State
			trigger  Trigger
		}{from, to, trigger})
	})

	_ = m.Fire(ctx, TriggerMute, time.Now().Add(time.Hour))
	_ = m.Fire(ctx, TriggerBan, time.Time{})

	require.Len(t, transitions, 2)
	assert.Equal(t, StateUnrestricted, transitions[0].from)
	assert.Equal(t, StateMuted, transitions[0].to)
	assert.Equal(t, TriggerMute, transitions[0].trigger)
	assert.Equal(t, StateMuted, transitions[1].from)
	assert.Equal(t, StateBanned, transitions[1].to)
}

func TestState_IsRestricted(t *testing.T) {
	assert.False(t, StateUnrestricted.IsRestricted())
	assert.True(t, StateMuted.IsRestricted())
	assert.True(t, StateBanned.IsRestricted())
}
