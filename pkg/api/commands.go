package api

import "github.com/ihiteshgupta/groupguard/internal/permission"

// Command names
const (
	CmdAFK          = "afk"
	CmdID           = "id"
	CmdMute         = "mute"
	CmdUnmute       = "unmute"
	CmdKick         = "kick"
	CmdBan          = "ban"
	CmdUnban        = "unban"
	CmdTempBan      = "tban"
	CmdWarn         = "warn"
	CmdUnwarn       = "unwarn"
	CmdWarns        = "warns"
	CmdResetWarns   = "resetwarns"
	CmdModLog       = "modlog"
	CmdSetTitle     = "settitle"
	CmdSetDesc      = "setdesc"
	CmdSlowMode     = "slowmode"
	CmdLock         = "lock"
	CmdUnlock       = "unlock"
	CmdNightMode    = "nightmode"
	CmdMorningMode  = "morningmode"
	CmdSetWarnLimit = "setwarnlimit"
	CmdSetWarnAct   = "setwarnaction"
	CmdSetLog       = "setlog"
	CmdPurge        = "purge"
	CmdPin          = "pin"
	CmdUnpin        = "unpin"
	CmdUnpinAll     = "unpinall"
	CmdShutdown     = "shutdown"
	CmdRestart      = "restart"
	CmdBroadcast    = "broadcast"
	CmdSudoList     = "sudo_list"
	CmdSudoAdd      = "sudo_add"
	CmdSudoRemove   = "sudo_remove"
	CmdStats        = "stats"
	CmdMaintenance  = "maintenance"
	CmdUpdateGroups = "update_groups"
)

var (
	everyone = []permission.Capability{permission.Everyone}
	admin    = []permission.Capability{permission.Admin}
	owner    = []permission.Capability{permission.Owner}
)

// commandTable lists every command with its guards.
func (h *Handler) commandTable() []Command {
	return []Command{
		// Everyone
		{Name: CmdAFK, Description: "Mark yourself as away", Requires: everyone, Run: h.handleAFK},
		{Name: CmdID, Description: "Show your user id and the chat id", Requires: everyone, Run: h.handleID},
		{Name: CmdWarns, Description: "Show active warnings", Requires: everyone, GroupOnly: true, Run: h.handleWarns},

		// Moderation
		{Name: CmdMute, Description: "Mute the replied user", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleMute},
		{Name: CmdUnmute, Description: "Unmute the replied user", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleUnmute},
		{Name: CmdKick, Description: "Remove the replied user", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleKick},
		{Name: CmdBan, Description: "Ban the replied user", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleBan},
		{Name: CmdUnban, Description: "Unban a user by id", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleUnban},
		{Name: CmdTempBan, Description: "Ban the replied user for a while", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleTempBan},
		{Name: CmdWarn, Description: "Warn the replied user", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleWarn},
		{Name: CmdUnwarn, Description: "Remove one warning", Requires: admin, GroupOnly: true, Run: h.handleUnwarn},
		{Name: CmdResetWarns, Description: "Clear all warnings", Requires: admin, GroupOnly: true, Run: h.handleResetWarns},
		{Name: CmdModLog, Description: "List recent moderation actions", Requires: admin, GroupOnly: true, Run: h.handleModLog},

		// Chat management
		{Name: CmdSetTitle, Description: "Change the chat title", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleSetTitle},
		{Name: CmdSetDesc, Description: "Change the chat description", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleSetDesc},
		{Name: CmdSlowMode, Description: "Limit how often members may post", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleSlowMode},
		{Name: CmdLock, Description: "Lock the chat", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleLock},
		{Name: CmdUnlock, Description: "Unlock the chat", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleUnlock},
		{Name: CmdNightMode, Description: "Lock the chat now or after a delay", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleNightMode},
		{Name: CmdMorningMode, Description: "Unlock the chat now or after a delay", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleMorningMode},
		{Name: CmdPurge, Description: "Delete messages from the replied one onwards", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handlePurge},
		{Name: CmdPin, Description: "Pin the replied message", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handlePin},
		{Name: CmdUnpin, Description: "Unpin the replied or latest message", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleUnpin},
		{Name: CmdUnpinAll, Description: "Unpin every message", Requires: admin, BotAdmin: true, GroupOnly: true, Run: h.handleUnpinAll},

		// Settings
		{Name: CmdSetWarnLimit, Description: "Set the warn limit", Requires: admin, GroupOnly: true, Run: h.handleSetWarnLimit},
		{Name: CmdSetWarnAct, Description: "Set the warn limit consequence", Requires: admin, GroupOnly: true, Run: h.handleSetWarnAction},
		{Name: CmdSetLog, Description: "Set the moderation log chat", Requires: admin, GroupOnly: true, Run: h.handleSetLog},

		// Owner
		{Name: CmdShutdown, Description: "Stop the bot", Requires: owner, Run: h.handleShutdown},
		{Name: CmdRestart, Description: "Restart the bot", Requires: owner, Run: h.handleRestart},
		{Name: CmdBroadcast, Description: "Send a message to every group", Requires: owner, Run: h.handleBroadcast},
		{Name: CmdSudoList, Description: "List sudo admins", Requires: owner, Run: h.handleSudoList},
		{Name: CmdSudoAdd, Description: "Add a sudo admin", Requires: owner, Run: h.handleSudoAdd},
		{Name: CmdSudoRemove, Description: "Remove a sudo admin", Requires: owner, Run: h.handleSudoRemove},
		{Name: CmdStats, Description: "Show bot statistics", Requires: owner, Run: h.handleStats},
		{Name: CmdMaintenance, Description: "Toggle maintenance mode", Requires: owner, Run: h.handleMaintenance},
		{Name: CmdUpdateGroups, Description: "Verify group memberships now", Requires: owner, Run: h.handleUpdateGroups},
	}
}
