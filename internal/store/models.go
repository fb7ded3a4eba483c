// Package store provides data persistence for the moderation bot.
package store

import (
	"database/sql"
	"strconv"
	"time"
)

// FormatID returns the canonical string key for a platform identifier.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID converts a canonical string key back to a platform identifier.
func ParseID(key string) (int64, error) {
	return strconv.ParseInt(key, 10, 64)
}

// Group is a conversation the bot participates in.
type Group struct {
	ID                    string       `db:"id" json:"id"`
	Title                 string       `db:"title" json:"title"`
	FirstJoined           time.Time    `db:"first_joined" json:"first_joined"`
	LastActive            time.Time    `db:"last_active" json:"last_active"`
	NeedsVerification     bool         `db:"needs_verification" json:"needs_verification"`
	NotificationsDisabled bool         `db:"notifications_disabled" json:"notifications_disabled"`
	VerifiedAt            sql.NullTime `db:"verified_at" json:"-"`
}

// ChatID returns the numeric chat identifier.
func (g Group) ChatID() int64 {
	id, _ := ParseID(g.ID)
	return id
}

// SudoAdmin is an owner-appointed helper recorded for bookkeeping.
type SudoAdmin struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	AddedDate time.Time `db:"added_date" json:"added_date"`
	AddedBy   string    `db:"added_by" json:"added_by"`
}

// Action is one audited moderation action together with the restriction
// state transition it caused.
type Action struct {
	ID        int64        `db:"id" json:"id"`
	Action    string       `db:"action" json:"action"`
	ChatID    string       `db:"chat_id" json:"chat_id"`
	ActorID   string       `db:"actor_id" json:"actor_id"`
	TargetID  string       `db:"target_id" json:"target_id"`
	FromState string       `db:"from_state" json:"from_state"`
	ToState   string       `db:"to_state" json:"to_state"`
	Until     sql.NullTime `db:"until" json:"-"`
	Reason    string       `db:"reason" json:"reason"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
