package moderation

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/store"
)

func setupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	db := setupTestStore(t)

	s := NewSettings(3, WarnActionMute, 0, db.Settings, zap.NewNop())
	require.NoError(t, s.SetWarnLimit(ctx, 5))
	require.NoError(t, s.SetWarnAction(ctx, WarnActionBan))
	s.SetLogChat(ctx, -100200)
	assert.True(t, s.ToggleMaintenance(ctx))

	reloaded := NewSettings(3, WarnActionMute, 0, db.Settings, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 5, reloaded.WarnLimit())
	assert.Equal(t, WarnActionBan, reloaded.WarnAction())
	assert.Equal(t, int64(-100200), reloaded.LogChat())
	assert.True(t, reloaded.Maintenance())
}

// slowSettingsRepo widens the window between the in-memory change and the write.
type slowSettingsRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func (r *slowSettingsRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (r *slowSettingsRepo) Set(_ context.Context, key, value string) error {
	n, _ := strconv.Atoi(value)
	time.Sleep(time.Duration(n%3) * time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *slowSettingsRepo) All(_ context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out, nil
}

func TestSettings_ConcurrentWritesMatchStore(t *testing.T) {
	ctx := context.Background()
	repo := &slowSettingsRepo{values: make(map[string]string)}
	s := NewSettings(3, WarnActionMute, 0, repo, zap.NewNop())

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.SetWarnLimit(ctx, n))
		}(i)
	}
	wg.Wait()

	stored, err := repo.Get(ctx, "warn_limit")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(s.WarnLimit()), stored)
}

func TestSettings_Validation(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(3, WarnActionMute, 0, nil, zap.NewNop())

	assert.ErrorIs(t, s.SetWarnLimit(ctx, 0), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetWarnAction(ctx, "shame"), ErrInvalidSetting)
	assert.Equal(t, 3, s.WarnLimit())
	assert.Equal(t, WarnActionMute, s.WarnAction())
}

func TestSettings_ToggleMaintenance(t *testing.T) {
	s := NewSettings(3, WarnActionMute, 0, nil, zap.NewNop())
	assert.False(t, s.Maintenance())
	assert.True(t, s.ToggleMaintenance(context.Background()))
	assert.False(t, s.ToggleMaintenance(context.Background()))
}

func TestParseWarnAction(t *testing.T) {
	for _, in := range []string{"mute", "kick", "ban"} {
		a, err := ParseWarnAction(in)
		require.NoError(t, err)
		assert.Equal(t, WarnAction(in), a)
	}
	_, err := ParseWarnAction("MUTE")
	assert.Error(t, err)
}
