package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested item is not found.
var ErrNotFound = errors.New("not found")

// GroupRepository defines operations for the group registry.
type GroupRepository interface {
	Upsert(ctx context.Context, group *Group) error
	Get(ctx context.Context, id string) (*Group, error)
	List(ctx context.Context) ([]Group, error)
	MarkVerified(ctx context.Context, id, title string, at time.Time) error
	SetNotificationsDisabled(ctx context.Context, id string, disabled bool) error
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// SudoRepository defines operations for the sudo admin list.
type SudoRepository interface {
	Add(ctx context.Context, admin *SudoAdmin) (bool, error)
	Remove(ctx context.Context, id string) (*SudoAdmin, error)
	List(ctx context.Context) ([]SudoAdmin, error)
	Count(ctx context.Context) (int, error)
}

// SettingsRepository defines operations for persisted runtime settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// ActionRepository defines operations for the moderation audit trail.
type ActionRepository interface {
	Record(ctx context.Context, action *Action) error
	Recent(ctx context.Context, chatID string, limit int) ([]Action, error)
	Count(ctx context.Context) (int, error)
}
