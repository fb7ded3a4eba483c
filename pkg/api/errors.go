// Package api dispatches bot commands to their handlers behind permission guards.
package api

import (
	"errors"
	"fmt"
	"html"

	"github.com/ihiteshgupta/groupguard/internal/moderation"
	"github.com/ihiteshgupta/groupguard/internal/platform"
)

// Error codes
const (
	ErrAuthorizationDenied = "AUTHORIZATION_DENIED"
	ErrPlatformFailure     = "PLATFORM_FAILURE"
	ErrValidation          = "VALIDATION"
	ErrNotFound            = "NOT_FOUND"
	ErrPersistence         = "PERSISTENCE"
	ErrInternal            = "INTERNAL"
)

// CommandError is a failure reported back to the invoking chat.
type CommandError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Reply returns the user-facing text in rich markup.
func (e *CommandError) Reply() string {
	switch e.Code {
	case ErrPlatformFailure:
		return fmt.Sprintf("❌ Failed to %s: %s", e.Message, html.EscapeString(platformReason(e.Err)))
	case ErrPersistence:
		return "❌ Couldn't save that change. Please try again."
	case ErrInternal:
		return "❌ Something went wrong while running that command."
	default:
		return e.Message
	}
}

// NewDeniedError creates an error for an action the actor may not perform.
func NewDeniedError(message string) *CommandError {
	return &CommandError{Code: ErrAuthorizationDenied, Message: message}
}

// NewValidationError creates an error for malformed arguments.
func NewValidationError(message string) *CommandError {
	return &CommandError{Code: ErrValidation, Message: "❌ " + message}
}

// NewUsageError creates a validation error carrying a usage hint.
func NewUsageError(usage string) *CommandError {
	return NewValidationError("Usage: " + usage)
}

// NewPlatformError creates an error for a failed platform call; action
// completes the sentence "Failed to ...".
func NewPlatformError(action string, err error) *CommandError {
	return &CommandError{Code: ErrPlatformFailure, Message: action, Err: err}
}

// NewNotFoundError creates an error for a target that could not be resolved.
func NewNotFoundError(message string) *CommandError {
	return &CommandError{Code: ErrNotFound, Message: "⚠️ " + message}
}

// NewPersistenceError creates an error for a failed store write.
func NewPersistenceError(err error) *CommandError {
	return &CommandError{Code: ErrPersistence, Message: "persist", Err: err}
}

// NewInternalError creates an error for internal errors.
func NewInternalError(err error) *CommandError {
	return &CommandError{Code: ErrInternal, Message: "internal", Err: err}
}

// classify maps any handler error onto the taxonomy. Errors that are not
// already a CommandError come from platform calls.
func classify(err error) *CommandError {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, moderation.ErrMissingDuration), errors.Is(err, moderation.ErrInvalidDuration):
		return NewValidationError("Invalid duration. Use minutes or a form like 1d2h30m.")
	case errors.Is(err, moderation.ErrInvalidSetting):
		return NewValidationError(err.Error())
	case errors.Is(err, moderation.ErrTargetIsStaff):
		return NewDeniedError("❌ I can't do that to an admin.")
	case platform.IsNotFound(err):
		return NewNotFoundError("I couldn't find that user or chat.")
	}
	return NewPlatformError("complete the action", err)
}

func platformReason(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, platform.ErrForbidden):
		return "I don't have the rights for that"
	default:
		return err.Error()
	}
}
