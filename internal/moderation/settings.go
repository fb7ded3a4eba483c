package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/store"
)

// WarnAction is the consequence applied when a user reaches the warn limit.
type WarnAction string

const (
	WarnActionMute WarnAction = "mute"
	WarnActionKick WarnAction = "kick"
	WarnActionBan  WarnAction = "ban"
)

// ErrInvalidSetting is returned for out-of-range setting values.
var ErrInvalidSetting = errors.New("invalid setting")

// ParseWarnAction validates a warn action name.
func ParseWarnAction(s string) (WarnAction, error) {
	switch WarnAction(s) {
	case WarnActionMute, WarnActionKick, WarnActionBan:
		return WarnAction(s), nil
	default:
		return "", fmt.Errorf("%w: warn action must be mute, kick or ban, got %q", ErrInvalidSetting, s)
	}
}

const (
	keyWarnLimit   = "warn_limit"
	keyWarnAction  = "warn_action"
	keyLogChat     = "mod_log_chat"
	keyMaintenance = "maintenance"
)

// Settings is the process-wide mutable configuration. Values start from
// config defaults, are overridden by persisted values on Load, and every
// change is written back. A failed write is logged and the in-memory value
// is kept.
type Settings struct {
	// writeMu orders changes so the stored value always matches memory.
	writeMu     sync.Mutex
	mu          sync.RWMutex
	warnLimit   int
	warnAction  WarnAction
	logChat     int64
	maintenance bool

	repo store.SettingsRepository
	log  *zap.Logger
}

// NewSettings creates settings with the given defaults. repo may be nil.
func NewSettings(warnLimit int, warnAction WarnAction, logChat int64, repo store.SettingsRepository, log *zap.Logger) *Settings {
	return &Settings{
		warnLimit:  warnLimit,
		warnAction: warnAction,
		logChat:    logChat,
		repo:       repo,
		log:        log.Named("settings"),
	}
}

// Load applies persisted overrides. Unparseable values are skipped.
func (s *Settings) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	values, err := s.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := values[keyWarnLimit]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			s.warnLimit = n
		}
	}
	if v, ok := values[keyWarnAction]; ok {
		if a, err := ParseWarnAction(v); err == nil {
			s.warnAction = a
		}
	}
	if v, ok := values[keyLogChat]; ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.logChat = id
		}
	}
	if v, ok := values[keyMaintenance]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.maintenance = b
		}
	}
	return nil
}

// update applies fn to the in-memory values and writes the returned value
// under key before the next change may start.
func (s *Settings) update(ctx context.Context, key string, fn func() string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	value := fn()
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		s.log.Error("failed to persist setting", zap.String("key", key), zap.Error(err))
	}
}

func (s *Settings) WarnLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warnLimit
}

// SetWarnLimit changes the warn limit; n must be at least 1.
func (s *Settings) SetWarnLimit(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("%w: warn limit must be at least 1", ErrInvalidSetting)
	}
	s.update(ctx, keyWarnLimit, func() string {
		s.warnLimit = n
		return strconv.Itoa(n)
	})
	return nil
}

func (s *Settings) WarnAction() WarnAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warnAction
}

func (s *Settings) SetWarnAction(ctx context.Context, a WarnAction) error {
	if _, err := ParseWarnAction(string(a)); err != nil {
		return err
	}
	s.update(ctx, keyWarnAction, func() string {
		s.warnAction = a
		return string(a)
	})
	return nil
}

// LogChat returns the moderation log chat, zero when disabled.
func (s *Settings) LogChat() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logChat
}

func (s *Settings) SetLogChat(ctx context.Context, chatID int64) {
	s.update(ctx, keyLogChat, func() string {
		s.logChat = chatID
		return strconv.FormatInt(chatID, 10)
	})
}

func (s *Settings) Maintenance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance
}

// ToggleMaintenance flips maintenance mode and returns the new value.
func (s *Settings) ToggleMaintenance(ctx context.Context) bool {
	var on bool
	s.update(ctx, keyMaintenance, func() string {
		s.maintenance = !s.maintenance
		on = s.maintenance
		return strconv.FormatBool(on)
	})
	return on
}
