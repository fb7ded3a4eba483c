package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlowMode(t *testing.T) {
	s := NewSlowMode()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	// Off by default.
	assert.True(t, s.Allow(-1, 10, now))
	assert.True(t, s.Allow(-1, 10, now))

	s.Set(-1, 10*time.Second)
	assert.Equal(t, 10*time.Second, s.Interval(-1))

	assert.True(t, s.Allow(-1, 10, now))
	assert.False(t, s.Allow(-1, 10, now.Add(5*time.Second)))
	assert.True(t, s.Allow(-1, 20, now.Add(5*time.Second)), "limits are per user")
	assert.True(t, s.Allow(-2, 10, now.Add(5*time.Second)), "limits are per chat")
	assert.True(t, s.Allow(-1, 10, now.Add(11*time.Second)))

	s.Set(-1, 0)
	assert.Zero(t, s.Interval(-1))
	assert.True(t, s.Allow(-1, 10, now.Add(11*time.Second)))
	assert.True(t, s.Allow(-1, 10, now.Add(11*time.Second)))
}

func TestSlowMode_SetResetsLimiters(t *testing.T) {
	s := NewSlowMode()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s.Set(-1, time.Minute)
	assert.True(t, s.Allow(-1, 10, now))
	assert.False(t, s.Allow(-1, 10, now.Add(time.Second)))

	s.Set(-1, 5*time.Second)
	assert.True(t, s.Allow(-1, 10, now.Add(2*time.Second)))
}
