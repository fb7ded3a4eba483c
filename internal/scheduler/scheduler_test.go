package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRunner(t *testing.T) *Runner {
	t.Helper()
	r := NewRunner(context.Background(), zap.NewNop())
	t.Cleanup(r.Stop)
	return r
}

func TestRunner_After(t *testing.T) {
	r := setupTestRunner(t)

	done := make(chan struct{})
	r.After(10*time.Millisecond, "test", func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	assert.Eventually(t, func() bool { return r.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunner_Cancel(t *testing.T) {
	r := setupTestRunner(t)

	var ran atomic.Bool
	id := r.After(50*time.Millisecond, "cancelled", func(context.Context) { ran.Store(true) })
	assert.Equal(t, 1, r.Pending())

	assert.True(t, r.Cancel(id))
	assert.False(t, r.Cancel(id))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestRunner_StopCancelsPending(t *testing.T) {
	r := NewRunner(context.Background(), zap.NewNop())

	var ran atomic.Bool
	r.After(time.Hour, "never", func(context.Context) { ran.Store(true) })
	require.NoError(t, r.Daily("daily", "03:00", func(context.Context) { ran.Store(true) }))

	r.Stop()
	assert.False(t, ran.Load())
}

func TestRunner_PanicRecovered(t *testing.T) {
	r := setupTestRunner(t)

	done := make(chan struct{})
	r.After(0, "panics", func(context.Context) { panic("boom") })
	r.After(20*time.Millisecond, "after", func(context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner stopped after panic")
	}
}

func TestRunner_DailyInvalid(t *testing.T) {
	r := setupTestRunner(t)
	assert.Error(t, r.Daily("bad", "25:00", func(context.Context) {}))
	assert.Error(t, r.Daily("bad", "3am", func(context.Context) {}))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("03:45")
	require.NoError(t, err)
	assert.Equal(t, 3, h)
	assert.Equal(t, 45, m)

	_, _, err = ParseClock("3:45")
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later today", time.Date(2024, 3, 1, 1, 0, 0, 0, loc), time.Date(2024, 3, 1, 3, 0, 0, 0, loc)},
		{"already passed", time.Date(2024, 3, 1, 4, 0, 0, 0, loc), time.Date(2024, 3, 2, 3, 0, 0, 0, loc)},
		{"exactly now", time.Date(2024, 3, 1, 3, 0, 0, 0, loc), time.Date(2024, 3, 2, 3, 0, 0, 0, loc)},
		{"month end", time.Date(2024, 2, 29, 23, 0, 0, 0, loc), time.Date(2024, 3, 1, 3, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextRun(tt.now, 3, 0))
		})
	}
}

func TestRestartMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "restart.flag")

	_, ok, err := ConsumeRestartMarker(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteRestartMarker(path, RestartMarker{ChatID: -100, MessageID: 7}))

	marker, ok, err := ConsumeRestartMarker(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(-100), marker.ChatID)
	assert.Equal(t, 7, marker.MessageID)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRestartMarker_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restart.flag")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, ok, err := ConsumeRestartMarker(path)
	assert.Error(t, err)
	assert.False(t, ok)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
