// Package state provides the restriction lifecycle of one user in one chat.
package state

// State is a user's restriction state in a chat.
type State string

const (
	StateUnrestricted State = "unrestricted"
	StateMuted        State = "muted"
	StateBanned       State = "banned"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsRestricted returns true if the user is muted or banned.
func (s State) IsRestricted() bool {
	return s == StateMuted || s == StateBanned
}
