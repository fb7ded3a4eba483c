package platform

import "errors"

var (
	// ErrNotFound means the chat or user does not exist or the bot is no longer in it.
	ErrNotFound = errors.New("platform: not found")
	// ErrForbidden means the bot lacks the rights for the call.
	ErrForbidden = errors.New("platform: forbidden")
)

// IsNotFound reports whether err belongs to the not-found class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
