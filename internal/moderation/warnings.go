package moderation

import "sync"

// WarningRecord holds a user's active warning count and the full reason
// history. Unwarn lowers Count without trimming Reasons.
type WarningRecord struct {
	Count   int
	Reasons []string
}

type chatWarnings struct {
	mu      sync.Mutex
	records map[int64]*WarningRecord
}

// WarningBook stores warning records in memory, scoped per chat.
type WarningBook struct {
	mu    sync.Mutex
	chats map[int64]*chatWarnings
}

// NewWarningBook creates an empty book.
func NewWarningBook() *WarningBook {
	return &WarningBook{chats: make(map[int64]*chatWarnings)}
}

func (b *WarningBook) chat(chatID int64) *chatWarnings {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.chats[chatID]
	if !ok {
		c = &chatWarnings{records: make(map[int64]*WarningRecord)}
		b.chats[chatID] = c
	}
	return c
}

// WarnOutcome is the result of adding a warning.
type WarnOutcome struct {
	// Count is the active count after the warning, before any reset.
	Count int
	// LimitReached is set when Count hit the limit and the record was reset.
	LimitReached bool
}

// Warn appends a reason and increments the count. When the count reaches
// limit it is reset to zero in the same critical section.
func (b *WarningBook) Warn(chatID, userID int64, reason string, limit int) WarnOutcome {
	c := b.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[userID]
	if !ok {
		rec = &WarningRecord{}
		c.records[userID] = rec
	}
	rec.Count++
	rec.Reasons = append(rec.Reasons, reason)

	out := WarnOutcome{Count: rec.Count}
	if rec.Count >= limit {
		rec.Count = 0
		out.LimitReached = true
	}
	return out
}

// Unwarn decrements the count, never below zero. ok is false when there was
// no active warning to remove.
func (b *WarningBook) Unwarn(chatID, userID int64) (count int, ok bool) {
	c := b.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, exists := c.records[userID]
	if !exists || rec.Count == 0 {
		return 0, false
	}
	rec.Count--
	return rec.Count, true
}

// Reset clears the count and history and returns the prior count.
func (b *WarningBook) Reset(chatID, userID int64) int {
	c := b.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, exists := c.records[userID]
	if !exists {
		return 0
	}
	prior := rec.Count
	rec.Count = 0
	rec.Reasons = nil
	return prior
}

// Get returns the active count and the reasons behind it: the last Count
// entries of the history.
func (b *WarningBook) Get(chatID, userID int64) (int, []string) {
	c := b.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, exists := c.records[userID]
	if !exists || rec.Count == 0 {
		return 0, nil
	}
	n := rec.Count
	if n > len(rec.Reasons) {
		n = len(rec.Reasons)
	}
	recent := make([]string, n)
	copy(recent, rec.Reasons[len(rec.Reasons)-n:])
	return rec.Count, recent
}
