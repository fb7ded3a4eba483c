package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/platform"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func setupTestTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	tr, err := NewTracker(NewMemStore(), 16, zap.NewNop(), WithClock(clock.now))
	require.NoError(t, err)
	return tr, clock
}

var (
	alice = platform.Actor{ID: 10, DisplayName: "Alice", Username: "alice"}
	bob   = platform.Actor{ID: 20, DisplayName: "Bob", Username: "bob"}
)

func message(from platform.Actor) platform.Message {
	return platform.Message{ID: 1, Chat: platform.Chat{ID: -1}, From: from, Text: "hi"}
}

func TestDeclare(t *testing.T) {
	tr, _ := setupTestTracker(t)
	ctx := context.Background()

	text, err := tr.Declare(ctx, alice, "")
	require.NoError(t, err)
	assert.Contains(t, text, "Alice")
	assert.Contains(t, text, "<i>AFK</i>")

	text, err = tr.Declare(ctx, alice, "lunch <3")
	require.NoError(t, err)
	assert.Contains(t, text, "lunch &lt;3")

	n, err := tr.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOnActivity_ReturnShowsSeconds(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	_, err := tr.Declare(ctx, alice, "brb")
	require.NoError(t, err)
	clock.t = clock.t.Add(5 * time.Second)

	notices, err := tr.OnActivity(ctx, message(alice))
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeReturn, notices[0].Kind)
	assert.Contains(t, notices[0].Text, "5s")

	n, _ := tr.Active(ctx)
	assert.Zero(t, n)

	notices, err = tr.OnActivity(ctx, message(alice))
	require.NoError(t, err)
	assert.Empty(t, notices)
}

func TestOnActivity_ReplyToAwayUser(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	_, err := tr.Declare(ctx, alice, "sleeping")
	require.NoError(t, err)
	clock.t = clock.t.Add(2*time.Hour + 5*time.Minute)

	msg := message(bob)
	reply := message(alice)
	msg.ReplyTo = &reply

	notices, err := tr.OnActivity(ctx, msg)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeAway, notices[0].Kind)
	assert.Equal(t, alice.ID, notices[0].UserID)
	assert.Contains(t, notices[0].Text, "sleeping")
	assert.Contains(t, notices[0].Text, "2h 5m")

	// The mentioned user's status is untouched.
	n, _ := tr.Active(ctx)
	assert.Equal(t, 1, n)
}

func TestOnActivity_DistinctMentions(t *testing.T) {
	tr, _ := setupTestTracker(t)
	ctx := context.Background()
	tr.Remember(alice)

	_, err := tr.Declare(ctx, alice, "")
	require.NoError(t, err)

	msg := message(bob)
	reply := message(alice)
	msg.ReplyTo = &reply
	msg.Mentions = []platform.Mention{{UserID: alice.ID}, {Username: "@Alice"}}

	notices, err := tr.OnActivity(ctx, msg)
	require.NoError(t, err)
	assert.Len(t, notices, 1)
}

func TestOnActivity_UsernameMention(t *testing.T) {
	tr, _ := setupTestTracker(t)
	ctx := context.Background()
	tr.Remember(alice)

	_, err := tr.Declare(ctx, alice, "")
	require.NoError(t, err)

	msg := message(bob)
	msg.Mentions = []platform.Mention{{Username: "alice"}, {Username: "unknown"}}

	notices, err := tr.OnActivity(ctx, msg)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, alice.ID, notices[0].UserID)
}

func TestOnActivity_SelfMentionWhileAway(t *testing.T) {
	tr, _ := setupTestTracker(t)
	ctx := context.Background()

	_, err := tr.Declare(ctx, alice, "")
	require.NoError(t, err)

	msg := message(alice)
	msg.Mentions = []platform.Mention{{UserID: alice.ID}}

	notices, err := tr.OnActivity(ctx, msg)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeReturn, notices[0].Kind)
}

func TestOnActivity_ReturnAndMentionTogether(t *testing.T) {
	tr, _ := setupTestTracker(t)
	ctx := context.Background()

	_, _ = tr.Declare(ctx, alice, "")
	_, _ = tr.Declare(ctx, bob, "")

	msg := message(alice)
	msg.Mentions = []platform.Mention{{UserID: bob.ID}}

	notices, err := tr.OnActivity(ctx, msg)
	require.NoError(t, err)
	require.Len(t, notices, 2)
	assert.Equal(t, NoticeReturn, notices[0].Kind)
	assert.Equal(t, NoticeAway, notices[1].Kind)
	assert.Equal(t, bob.ID, notices[1].UserID)
}

func TestDeclare_OverwritesSilently(t *testing.T) {
	tr, clock := setupTestTracker(t)
	ctx := context.Background()

	_, _ = tr.Declare(ctx, alice, "first")
	clock.t = clock.t.Add(time.Hour)
	_, _ = tr.Declare(ctx, alice, "second")
	clock.t = clock.t.Add(10 * time.Second)

	msg := message(bob)
	msg.Mentions = []platform.Mention{{UserID: alice.ID}}
	notices, err := tr.OnActivity(ctx, msg)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, "second")
	assert.Contains(t, notices[0].Text, "10s")
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{time.Minute, "1m"},
		{90 * time.Minute, "1h 30m"},
		{26*time.Hour + 3*time.Minute + 10*time.Second, "1d 2h 3m"},
		{48 * time.Hour, "2d"},
		{-time.Second, "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatElapsed(tt.in))
		})
	}
}
