package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/config"
	"github.com/ihiteshgupta/groupguard/internal/groups"
	"github.com/ihiteshgupta/groupguard/internal/health"
	"github.com/ihiteshgupta/groupguard/internal/moderation"
	"github.com/ihiteshgupta/groupguard/internal/permission"
	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/internal/presence"
	"github.com/ihiteshgupta/groupguard/internal/scheduler"
	"github.com/ihiteshgupta/groupguard/internal/store"
)

// Process exit codes requested by owner commands.
const (
	ExitShutdown = 0
	ExitRestart  = 42
)

const (
	msgMaintenance = "🔧 Bot is currently in maintenance mode. Please try again later."
	msgGroupOnly   = "❌ This command only works in groups."
)

// Invocation is one inbound command.
type Invocation struct {
	Name    string
	Args    []string
	Message platform.Message
}

// Chat returns the conversation the command was sent in.
func (inv *Invocation) Chat() platform.Chat {
	return inv.Message.Chat
}

// Actor returns who sent the command.
func (inv *Invocation) Actor() platform.Actor {
	return inv.Message.From
}

// Rest joins the arguments from index i onwards.
func (inv *Invocation) Rest(i int) string {
	if i >= len(inv.Args) {
		return ""
	}
	return strings.Join(inv.Args[i:], " ")
}

// ReplyTarget returns the author of the replied-to message.
func (inv *Invocation) ReplyTarget() (platform.Actor, bool) {
	if inv.Message.ReplyTo == nil {
		return platform.Actor{}, false
	}
	return inv.Message.ReplyTo.From, true
}

// HandlerFunc runs a command after its guards passed.
type HandlerFunc func(ctx context.Context, inv *Invocation) error

// CallbackFunc handles an inline button press.
type CallbackFunc func(ctx context.Context, cb platform.Callback) error

// Command binds a command name to its handler and guards.
type Command struct {
	Name        string
	Description string
	// Requires lists alternative capabilities; any one suffices.
	Requires []permission.Capability
	// BotAdmin additionally requires the bot to be an administrator.
	BotAdmin  bool
	GroupOnly bool
	Run       HandlerFunc
}

// Deps are the services command handlers operate on.
type Deps struct {
	Config     *config.Config
	Client     platform.Client
	Sudo       store.SudoRepository
	Actions    store.ActionRepository
	Evaluator  *permission.Evaluator
	Moderation *moderation.Service
	SlowMode   *moderation.SlowMode
	Registry   *groups.Registry
	Presence   *presence.Tracker
	Scheduler  *scheduler.Runner
	Health     *health.Monitor
	// Exit is called with ExitShutdown or ExitRestart after the reply is sent.
	Exit func(code int)
	Log  *zap.Logger
	Now  func() time.Time
}

// Handler routes commands and callbacks to their handlers.
type Handler struct {
	cfg        *config.Config
	client     platform.Client
	sudo       store.SudoRepository
	actions    store.ActionRepository
	evaluator  *permission.Evaluator
	moderation *moderation.Service
	settings   *moderation.Settings
	slowmode   *moderation.SlowMode
	registry   *groups.Registry
	presence   *presence.Tracker
	scheduler  *scheduler.Runner
	health     *health.Monitor
	exit       func(code int)
	log        *zap.Logger
	now        func() time.Time

	commands  map[string]*Command
	callbacks map[string]CallbackFunc

	mu       sync.Mutex
	lockJobs map[int64]string
}

// NewHandler creates a handler with every bot command registered.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		cfg:        d.Config,
		client:     d.Client,
		sudo:       d.Sudo,
		actions:    d.Actions,
		evaluator:  d.Evaluator,
		moderation: d.Moderation,
		settings:   d.Moderation.Settings(),
		slowmode:   d.SlowMode,
		registry:   d.Registry,
		presence:   d.Presence,
		scheduler:  d.Scheduler,
		health:     d.Health,
		exit:       d.Exit,
		log:        d.Log.Named("api"),
		now:        d.Now,
		commands:   make(map[string]*Command),
		callbacks:  make(map[string]CallbackFunc),
		lockJobs:   make(map[int64]string),
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.exit == nil {
		h.exit = func(int) {}
	}
	if h.slowmode == nil {
		h.slowmode = moderation.NewSlowMode()
	}
	for _, cmd := range h.commandTable() {
		h.Register(cmd)
	}
	h.RegisterCallback(callbackUnpinAllYes, h.handleUnpinAllCallback)
	h.RegisterCallback(callbackUnpinAllNo, h.handleUnpinAllCallback)
	return h
}

// Register adds a command. Registering a name twice panics.
func (h *Handler) Register(cmd Command) {
	if _, dup := h.commands[cmd.Name]; dup {
		panic(fmt.Sprintf("api: command %q registered twice", cmd.Name))
	}
	c := cmd
	h.commands[cmd.Name] = &c
}

// RegisterCallback binds inline button data to a handler.
func (h *Handler) RegisterCallback(data string, fn CallbackFunc) {
	h.callbacks[data] = fn
}

// Commands returns the registered commands in table order.
func (h *Handler) Commands() []Command {
	table := h.commandTable()
	out := make([]Command, 0, len(table))
	for _, c := range table {
		if reg, ok := h.commands[c.Name]; ok {
			out = append(out, *reg)
		}
	}
	return out
}

// SlowMode returns the slow-mode table shared with the message path.
func (h *Handler) SlowMode() *moderation.SlowMode {
	return h.slowmode
}

// HandleCommand counts, gates and runs one command. It reports whether a
// handler was found; unknown commands are ignored.
func (h *Handler) HandleCommand(ctx context.Context, inv *Invocation) bool {
	cmd, ok := h.commands[inv.Name]
	if !ok {
		h.health.RecordCommand("unknown")
		return false
	}
	h.health.RecordCommand(cmd.Name)

	if h.settings.Maintenance() && !h.evaluator.IsOwner(inv.Actor()) {
		h.say(ctx, inv, msgMaintenance)
		return true
	}
	if cmd.GroupOnly && !inv.Chat().IsGroup() {
		h.say(ctx, inv, msgGroupOnly)
		return true
	}
	if !h.authorize(ctx, cmd, inv) {
		return true
	}

	h.run(ctx, cmd, inv)
	return true
}

// HandleCallback runs the handler bound to the button's data. Maintenance
// mode blocks everyone but the owner, as it does for commands.
func (h *Handler) HandleCallback(ctx context.Context, cb platform.Callback) {
	fn, ok := h.callbacks[cb.Data]
	if !ok {
		h.answer(ctx, cb, "")
		return
	}
	if h.settings.Maintenance() && !h.evaluator.IsOwner(cb.From) {
		h.answer(ctx, cb, msgMaintenance)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("callback panicked", zap.String("data", cb.Data), zap.Any("panic", r))
		}
	}()
	if err := fn(ctx, cb); err != nil {
		h.log.Warn("callback failed", zap.String("data", cb.Data), zap.Error(err))
	}
}

func (h *Handler) answer(ctx context.Context, cb platform.Callback, text string) {
	if err := h.client.AnswerCallback(ctx, cb.ID, text); err != nil {
		h.log.Debug("failed to answer callback", zap.Error(err))
	}
}

// authorize applies the command's guards in order. Denials are answered by
// the evaluator.
func (h *Handler) authorize(ctx context.Context, cmd *Command, inv *Invocation) bool {
	subj := permission.Subject{Actor: inv.Actor(), Chat: inv.Chat(), MessageID: inv.Message.ID}

	if len(cmd.Requires) > 0 {
		d := h.evaluator.Evaluate(ctx, subj, cmd.Requires, false)
		if !d.Allowed {
			h.health.RecordDenial(capabilityLabel(cmd.Requires))
			return false
		}
	}
	if cmd.BotAdmin {
		d := h.evaluator.Evaluate(ctx, subj, []permission.Capability{permission.BotIsAdmin}, false)
		if !d.Allowed {
			h.health.RecordDenial(permission.BotIsAdmin.String())
			return false
		}
	}
	return true
}

func (h *Handler) run(ctx context.Context, cmd *Command, inv *Invocation) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("command panicked", zap.String("command", cmd.Name), zap.Any("panic", r))
			h.say(ctx, inv, NewInternalError(fmt.Errorf("panic: %v", r)).Reply())
		}
	}()

	err := cmd.Run(ctx, inv)
	if err == nil {
		return
	}
	ce := classify(err)
	h.log.Warn("command failed",
		zap.String("command", cmd.Name),
		zap.Int64("chat_id", inv.Chat().ID),
		zap.Int64("user_id", inv.Actor().ID),
		zap.String("code", ce.Code),
		zap.Error(err),
	)
	h.say(ctx, inv, ce.Reply())
}

// say replies to the command message. A failed reply is only logged since
// there is nowhere left to report it.
func (h *Handler) say(ctx context.Context, inv *Invocation, text string) int {
	id, err := h.client.Send(ctx, inv.Chat().ID, text, platform.SendOptions{
		Format:  platform.FormatRich,
		ReplyTo: inv.Message.ID,
	})
	if err != nil {
		h.log.Warn("failed to send reply", zap.Int64("chat_id", inv.Chat().ID), zap.Error(err))
	}
	return id
}

func capabilityLabel(cs []permission.Capability) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return strings.Join(names, "|")
}
