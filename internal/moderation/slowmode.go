package moderation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SlowMode enforces a minimum interval between messages of one user in a chat.
type SlowMode struct {
	mu        sync.Mutex
	intervals map[int64]time.Duration
	limiters  map[restrictionKey]*rate.Limiter
}

// NewSlowMode creates an empty slow-mode table.
func NewSlowMode() *SlowMode {
	return &SlowMode{
		intervals: make(map[int64]time.Duration),
		limiters:  make(map[restrictionKey]*rate.Limiter),
	}
}

// Set changes the interval for chatID. Zero or less turns slow mode off.
func (s *SlowMode) Set(chatID int64, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.limiters {
		if k.chatID == chatID {
			delete(s.limiters, k)
		}
	}
	if interval <= 0 {
		delete(s.intervals, chatID)
		return
	}
	s.intervals[chatID] = interval
}

// Interval returns the current interval for chatID, zero when off.
func (s *SlowMode) Interval(chatID int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervals[chatID]
}

// Allow reports whether userID may post in chatID at now.
func (s *SlowMode) Allow(chatID, userID int64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	interval, ok := s.intervals[chatID]
	if !ok {
		return true
	}
	key := restrictionKey{chatID: chatID, userID: userID}
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		s.limiters[key] = lim
	}
	return lim.AllowN(now, 1)
}
