package state

// Trigger represents a moderation event that moves a user between states.
type Trigger string

const (
	TriggerMute   Trigger = "mute"
	TriggerUnmute Trigger = "unmute"
	TriggerBan    Trigger = "ban"
	TriggerUnban  Trigger = "unban"
	TriggerKick   Trigger = "kick"
	// TriggerExpire fires when a timed restriction's until-time has passed.
	TriggerExpire Trigger = "expire"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
