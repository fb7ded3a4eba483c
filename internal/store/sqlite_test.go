package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Settings.Set(context.Background(), "warn_limit", "5"))
	require.NoError(t, s1.Close())

	// Migrations are already applied; reopening must not fail.
	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Settings.Get(context.Background(), "warn_limit")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
}

func TestSQLiteStore_Ping(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

// Group Repository Tests

func TestSQLiteGroupRepo_UpsertPreservesFirstJoined(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	joined := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	err := store.Groups.Upsert(ctx, &Group{ID: "-100", Title: "Old", FirstJoined: joined, LastActive: joined})
	require.NoError(t, err)

	later := joined.Add(48 * time.Hour)
	err = store.Groups.Upsert(ctx, &Group{ID: "-100", Title: "New", FirstJoined: later, LastActive: later})
	require.NoError(t, err)

	g, err := store.Groups.Get(ctx, "-100")
	require.NoError(t, err)
	assert.True(t, g.FirstJoined.Equal(joined), "first_joined changed to %v", g.FirstJoined)
	assert.True(t, g.LastActive.Equal(later))
	assert.Equal(t, "New", g.Title)
	assert.Equal(t, int64(-100), g.ChatID())

	count, err := store.Groups.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteGroupRepo_UpsertKeepsTitleWhenEmpty(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Groups.Upsert(ctx, &Group{ID: "-7", Title: "Named", FirstJoined: now, LastActive: now}))
	require.NoError(t, store.Groups.Upsert(ctx, &Group{ID: "-7", FirstJoined: now, LastActive: now}))

	g, err := store.Groups.Get(ctx, "-7")
	require.NoError(t, err)
	assert.Equal(t, "Named", g.Title)
}

func TestSQLiteGroupRepo_MarkVerifiedAndDelete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Groups.Upsert(ctx, &Group{ID: "-1", Title: "A", FirstJoined: now, LastActive: now, NeedsVerification: true}))

	require.NoError(t, store.Groups.MarkVerified(ctx, "-1", "A renamed", now))
	g, err := store.Groups.Get(ctx, "-1")
	require.NoError(t, err)
	assert.False(t, g.NeedsVerification)
	assert.True(t, g.VerifiedAt.Valid)
	assert.Equal(t, "A renamed", g.Title)

	assert.ErrorIs(t, store.Groups.MarkVerified(ctx, "-2", "", now), ErrNotFound)

	deleted, err := store.Groups.Delete(ctx, "-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Groups.Delete(ctx, "-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.Groups.Get(ctx, "-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteGroupRepo_NotificationsDisabled(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Groups.Upsert(ctx, &Group{ID: "-3", FirstJoined: now, LastActive: now}))
	require.NoError(t, store.Groups.SetNotificationsDisabled(ctx, "-3", true))

	groups, err := store.Groups.List(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].NotificationsDisabled)
}

// Sudo Repository Tests

func TestSQLiteSudoRepo_AddListRemove(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	added, err := store.Sudo.Add(ctx, &SudoAdmin{ID: "555", Name: "Alice", AddedDate: time.Now().UTC(), AddedBy: "1"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.Sudo.Add(ctx, &SudoAdmin{ID: "555", Name: "Alice again", AddedDate: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, added)

	admins, err := store.Sudo.List(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "Alice", admins[0].Name)

	removed, err := store.Sudo.Remove(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, "Alice", removed.Name)

	_, err = store.Sudo.Remove(ctx, "555")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := store.Sudo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// Settings Repository Tests

func TestSQLiteSettingsRepo(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.Settings.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Settings.Set(ctx, "warn_action", "kick"))
	require.NoError(t, store.Settings.Set(ctx, "warn_action", "ban"))
	require.NoError(t, store.Settings.Set(ctx, "maintenance", "true"))

	v, err := store.Settings.Get(ctx, "warn_action")
	require.NoError(t, err)
	assert.Equal(t, "ban", v)

	all, err := store.Settings.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"warn_action": "ban", "maintenance": "true"}, all)
}

// Action Repository Tests

func TestSQLiteActionRepo_RecordRecent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, action := range []string{"mute", "unmute", "ban"} {
		a := &Action{
			Action:    action,
			ChatID:    "-100",
			ActorID:   "1",
			TargetID:  "2",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if action == "mute" {
			a.Until = sql.NullTime{Time: base.Add(time.Hour), Valid: true}
		}
		require.NoError(t, store.Actions.Record(ctx, a))
		assert.NotZero(t, a.ID)
	}

	recent, err := store.Actions.Recent(ctx, "-100", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ban", recent[0].Action)
	assert.Equal(t, "unmute", recent[1].Action)

	count, err := store.Actions.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// Legacy Import Tests

func TestImportLegacy(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	groups := `{
		"-1001": {"title": "Chat One", "first_joined": "2024-02-03T04:05:06.123456", "last_active": "2024-03-01T00:00:00", "needs_verification": true},
		"not-a-number": {"title": "skip"}
	}`
	sudo := `{"admins": [{"id": 555, "name": "Alice", "added_date": "2024-01-01T00:00:00", "added_by": 42}], "last_updated": "2024-01-01T00:00:00"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacyGroupsFile), []byte(groups), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacySudoFile), []byte(sudo), 0600))

	now := time.Now().UTC()
	res, err := store.ImportLegacy(ctx, dir, now)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Groups: 1, Admins: 1}, res)

	g, err := store.Groups.Get(ctx, "-1001")
	require.NoError(t, err)
	assert.Equal(t, "Chat One", g.Title)
	assert.Equal(t, 2024, g.FirstJoined.Year())
	assert.True(t, g.NeedsVerification)

	admins, err := store.Sudo.List(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "555", admins[0].ID)
	assert.Equal(t, "42", admins[0].AddedBy)

	// Second run is a no-op.
	res, err = store.ImportLegacy(ctx, dir, now)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{}, res)
}

func TestImportLegacy_MissingFiles(t *testing.T) {
	store := setupTestDB(t)
	res, err := store.ImportLegacy(context.Background(), t.TempDir(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, ImportResult{}, res)
}
