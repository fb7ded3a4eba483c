package groups

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/internal/platform/platformtest"
	"github.com/ihiteshgupta/groupguard/internal/store"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func setupTestRegistry(t *testing.T) (*Registry, *store.SQLiteStore, *platformtest.FakeClient, *fakeClock) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	client := platformtest.NewFakeClient()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(s.Groups, client, zap.NewNop(),
		WithClock(clock.now),
		WithProbeRetry(2, time.Millisecond, time.Millisecond),
	)
	return r, s, client, clock
}

func group(id int64, title string) platform.Chat {
	return platform.Chat{ID: id, Title: title, Type: "supergroup"}
}

func TestRegistry_UpsertPreservesFirstJoined(t *testing.T) {
	r, s, _, clock := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, group(-100, "Gophers")))
	joined := clock.t

	clock.t = clock.t.Add(2 * time.Hour)
	require.NoError(t, r.Upsert(ctx, group(-100, "Gophers Renamed")))

	g, err := s.Groups.Get(ctx, "-100")
	require.NoError(t, err)
	assert.True(t, g.FirstJoined.Equal(joined))
	assert.True(t, g.LastActive.Equal(clock.t))
	assert.Equal(t, "Gophers Renamed", g.Title)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistry_UpsertIgnoresPrivateChats(t *testing.T) {
	r, _, _, _ := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, platform.Chat{ID: 42, Type: "private"}))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistry_Remove(t *testing.T) {
	r, _, _, _ := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, group(-100, "A")))

	removed, err := r.Remove(ctx, -100)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.Remove(ctx, -100)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegistry_DisableNotifications(t *testing.T) {
	r, s, _, _ := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, group(-100, "Read only")))
	require.NoError(t, r.DisableNotifications(ctx, -100))

	g, err := s.Groups.Get(ctx, "-100")
	require.NoError(t, err)
	assert.True(t, g.NotificationsDisabled)

	assert.ErrorIs(t, r.DisableNotifications(ctx, -404), store.ErrNotFound)
}

func TestRegistry_VerifyAll(t *testing.T) {
	r, s, client, clock := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, group(-100, "Kept")))
	require.NoError(t, r.Upsert(ctx, group(-200, "Gone")))
	client.SetChat(group(-100, "Kept (new title)"))
	client.SetMember(-100, client.Self(), platform.StatusMember)
	// -300 is known to the platform but was never registered.
	client.SetChat(group(-300, "Stranger"))

	clock.t = clock.t.Add(time.Hour)
	res, err := r.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerifyResult{Kept: 1, Pruned: 1}, res)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "-100", list[0].ID)
	assert.Equal(t, "Kept (new title)", list[0].Title)
	assert.False(t, list[0].NeedsVerification)
	require.True(t, list[0].VerifiedAt.Valid)
	assert.True(t, list[0].VerifiedAt.Time.Equal(clock.t))

	_, err = s.Groups.Get(ctx, "-300")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistry_VerifyAllPrunesWhenBotWasRemoved(t *testing.T) {
	r, s, client, _ := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, group(-100777, "Public, bot kicked")))
	require.NoError(t, r.Upsert(ctx, group(-100888, "Public, bot left")))
	require.NoError(t, r.Upsert(ctx, group(-100999, "Still here")))
	for _, id := range []int64{-100777, -100888, -100999} {
		client.SetChat(group(id, "t"))
	}
	client.SetMember(-100777, client.Self(), platform.StatusKicked)
	client.SetMember(-100888, client.Self(), platform.StatusLeft)
	client.SetBotAdmin(-100999)

	res, err := r.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerifyResult{Kept: 1, Pruned: 2}, res)

	_, err = s.Groups.Get(ctx, "-100777")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Groups.Get(ctx, "-100888")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Groups.Get(ctx, "-100999")
	assert.NoError(t, err)
}

func TestRegistry_VerifyAllMemberLookupFailureKeepsRecord(t *testing.T) {
	r, _, client, _ := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, group(-100, "Flaky")))
	client.SetChat(group(-100, "Flaky"))
	client.FailOn("GetMember", errors.New("timeout"))

	res, err := r.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerifyResult{Failed: 1}, res)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistry_VerifyAllTransientFailureKeepsRecord(t *testing.T) {
	r, _, client, _ := setupTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, group(-100, "Flaky")))
	client.FailOn("GetChat", errors.New("timeout"))

	res, err := r.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerifyResult{Failed: 1}, res)

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistry_VerifyAllCancelled(t *testing.T) {
	r, _, _, _ := setupTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.Upsert(ctx, group(-100, "A")))
	cancel()

	_, err := r.VerifyAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
