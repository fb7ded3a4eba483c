package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ihiteshgupta/groupguard/internal/moderation"
	"github.com/ihiteshgupta/groupguard/internal/platform"
)

func TestCommandError(t *testing.T) {
	err := NewPlatformError("mute the user", errors.New("timeout <5s>"))
	assert.Equal(t, ErrPlatformFailure, err.Code)
	assert.Equal(t, "❌ Failed to mute the user: timeout &lt;5s&gt;", err.Reply())
	assert.Contains(t, err.Error(), "PLATFORM_FAILURE")

	v := NewUsageError("/tban <duration> [reason]")
	assert.Equal(t, "❌ Usage: /tban <duration> [reason]", v.Reply())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"command error passes through", NewDeniedError("no"), ErrAuthorizationDenied},
		{"wrapped command error", fmt.Errorf("outer: %w", NewValidationError("bad")), ErrValidation},
		{"bad duration", moderation.ErrInvalidDuration, ErrValidation},
		{"missing duration", moderation.ErrMissingDuration, ErrValidation},
		{"invalid setting", fmt.Errorf("%w: nope", moderation.ErrInvalidSetting), ErrValidation},
		{"staff target", fmt.Errorf("cannot ban staff: %w", moderation.ErrTargetIsStaff), ErrAuthorizationDenied},
		{"not found", fmt.Errorf("get: %w", platform.ErrNotFound), ErrNotFound},
		{"forbidden", fmt.Errorf("ban: %w", platform.ErrForbidden), ErrPlatformFailure},
		{"anything else", errors.New("boom"), ErrPlatformFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, classify(tt.err).Code)
		})
	}
}

func TestPlatformReason(t *testing.T) {
	assert.Equal(t, "I don't have the rights for that", platformReason(fmt.Errorf("x: %w", platform.ErrForbidden)))
	assert.Equal(t, "unknown error", platformReason(nil))
}
