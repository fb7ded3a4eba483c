package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/groups"
	"github.com/ihiteshgupta/groupguard/internal/health"
	"github.com/ihiteshgupta/groupguard/internal/moderation"
	"github.com/ihiteshgupta/groupguard/internal/permission"
	"github.com/ihiteshgupta/groupguard/internal/platform"
	"github.com/ihiteshgupta/groupguard/internal/presence"
	"github.com/ihiteshgupta/groupguard/internal/scheduler"
	"github.com/ihiteshgupta/groupguard/pkg/api"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 100

	msgRestarted = "✅ Bot restarted successfully!"
)

// Deps are the collaborators of the event loop.
type Deps struct {
	Handler   *api.Handler
	Client    platform.Client
	Evaluator *permission.Evaluator
	Presence  *presence.Tracker
	Registry  *groups.Registry
	Health    *health.Monitor
	Log       *zap.Logger
	Now       func() time.Time

	// Workers is the number of event queues. Events of one conversation
	// always land on the same queue and are handled in order.
	Workers   int
	QueueSize int
}

// Bot is the inbound event loop.
type Bot struct {
	handler   *api.Handler
	client    platform.Client
	evaluator *permission.Evaluator
	presence  *presence.Tracker
	registry  *groups.Registry
	slowmode  *moderation.SlowMode
	health    *health.Monitor
	log       *zap.Logger
	now       func() time.Time

	queues    []chan Event
	listeners []func(Event)
	stopped   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// New creates the event loop and starts its workers.
func New(d Deps) *Bot {
	ctx, cancel := context.WithCancel(context.Background())

	workers := d.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := d.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	b := &Bot{
		handler:   d.Handler,
		client:    d.Client,
		evaluator: d.Evaluator,
		presence:  d.Presence,
		registry:  d.Registry,
		slowmode:  d.Handler.SlowMode(),
		health:    d.Health,
		log:       d.Log.Named("bot"),
		now:       d.Now,
		queues:    make([]chan Event, workers),
		ctx:       ctx,
		cancel:    cancel,
	}
	if b.now == nil {
		b.now = time.Now
	}

	for i := range b.queues {
		b.queues[i] = make(chan Event, size)
		b.wg.Add(1)
		go b.processEvents(b.queues[i])
	}
	return b
}

// EmitEvent adds an event to its conversation's queue. Events are dropped
// when the queue is full or the loop has stopped.
func (b *Bot) EmitEvent(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}

	q := b.queues[queueIndex(evt.ChatID, len(b.queues))]
	select {
	case q <- evt:
	default:
		b.log.Warn("event queue full, dropping event",
			zap.Stringer("type", evt.Type),
			zap.Int64("chat_id", evt.ChatID),
		)
	}
}

// OnEvent registers a callback for all events.
func (b *Bot) OnEvent(handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, handler)
}

// Stop drains the queues and waits for in-flight events.
func (b *Bot) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
}

// NotifyRestart replies to the message that requested the restart.
func (b *Bot) NotifyRestart(ctx context.Context, marker scheduler.RestartMarker) error {
	_, err := b.client.Send(ctx, marker.ChatID, msgRestarted, platform.SendOptions{ReplyTo: marker.MessageID})
	return err
}

// queueIndex shards chats over n queues; every id, negative ones included,
// maps into [0, n).
func queueIndex(chatID int64, n int) int {
	return int(uint64(chatID) % uint64(n))
}

// processEvents is the event processing goroutine of one queue.
func (b *Bot) processEvents(q <-chan Event) {
	defer b.wg.Done()

	for evt := range q {
		b.handleEvent(evt)
	}
}

func (b *Bot) handleEvent(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", zap.Stringer("type", evt.Type), zap.Any("panic", r))
		}
	}()
	b.log.Debug("processing event", zap.Stringer("type", evt.Type), zap.Int64("chat_id", evt.ChatID))

	b.mu.RLock()
	listeners := make([]func(Event), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, listener := range listeners {
		listener(evt)
	}

	ctx := b.ctx
	switch evt.Type {
	case EventCommand:
		b.handleCommand(ctx, evt)
	case EventMessage:
		b.handleMessage(ctx, evt)
	case EventMembership:
		b.handleMembership(ctx, evt)
	case EventCallback:
		b.handleCallback(ctx, evt)
	}
}

// handleCommand treats the command as activity, except /afk itself, then
// dispatches it.
func (b *Bot) handleCommand(ctx context.Context, evt Event) {
	inv, ok := evt.Payload.(*api.Invocation)
	if !ok {
		b.log.Error("invalid command payload")
		return
	}
	b.observe(ctx, inv.Message)
	if inv.Name != api.CmdAFK {
		b.checkPresence(ctx, inv.Message)
	}
	b.handler.HandleCommand(ctx, inv)
}

func (b *Bot) handleMessage(ctx context.Context, evt Event) {
	msg, ok := evt.Payload.(platform.Message)
	if !ok {
		b.log.Error("invalid message payload")
		return
	}
	b.health.RecordMessage()
	b.observe(ctx, msg)
	if b.enforceSlowMode(ctx, msg) {
		return
	}
	b.checkPresence(ctx, msg)
}

func (b *Bot) handleMembership(ctx context.Context, evt Event) {
	p, ok := evt.Payload.(MembershipPayload)
	if !ok {
		b.log.Error("invalid membership payload")
		return
	}
	log := b.log.With(zap.Int64("chat_id", p.Chat.ID), zap.Int64("user_id", p.User.ID))

	if p.User.ID == b.client.Self().ID && !p.Joined {
		removed, err := b.registry.Remove(ctx, p.Chat.ID)
		if err != nil {
			log.Error("failed to remove group", zap.Error(err))
			return
		}
		if removed {
			log.Info("removed from group")
		}
		return
	}
	if !p.Joined {
		return
	}
	b.presence.Remember(p.User)
	if err := b.registry.Upsert(ctx, p.Chat); err != nil {
		log.Error("failed to record group", zap.Error(err))
		return
	}
	if p.User.ID == b.client.Self().ID {
		log.Info("added to group", zap.String("title", p.Chat.Title))
	}
}

func (b *Bot) handleCallback(ctx context.Context, evt Event) {
	cb, ok := evt.Payload.(platform.Callback)
	if !ok {
		b.log.Error("invalid callback payload")
		return
	}
	b.handler.HandleCallback(ctx, cb)
}

// observe records the author for @username lookups and refreshes the group.
func (b *Bot) observe(ctx context.Context, msg platform.Message) {
	b.presence.Remember(msg.From)
	if msg.ReplyTo != nil {
		b.presence.Remember(msg.ReplyTo.From)
	}
	if !msg.Chat.IsGroup() {
		return
	}
	if err := b.registry.Upsert(ctx, msg.Chat); err != nil {
		b.log.Warn("failed to refresh group", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// enforceSlowMode deletes a message sent faster than the chat's interval
// allows. Staff are exempt; a failed status lookup keeps the message.
func (b *Bot) enforceSlowMode(ctx context.Context, msg platform.Message) bool {
	if !msg.Chat.IsGroup() || msg.From.IsBot {
		return false
	}
	if b.slowmode.Allow(msg.Chat.ID, msg.From.ID, b.now()) {
		return false
	}
	isAdmin, err := b.evaluator.IsAdmin(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		b.log.Warn("slow mode status lookup failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		return false
	}
	if isAdmin {
		return false
	}
	if err := b.client.Delete(ctx, msg.Chat.ID, msg.ID); err != nil {
		b.log.Warn("failed to delete slow mode message",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Int("message_id", msg.ID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (b *Bot) checkPresence(ctx context.Context, msg platform.Message) {
	if msg.From.IsBot {
		return
	}
	notices, err := b.presence.OnActivity(ctx, msg)
	if err != nil {
		b.log.Warn("presence check failed", zap.Int64("user_id", msg.From.ID), zap.Error(err))
	}
	for _, n := range notices {
		_, err := b.client.Send(ctx, msg.Chat.ID, n.Text, platform.SendOptions{
			Format:  platform.FormatRich,
			ReplyTo: msg.ID,
		})
		if err != nil {
			b.log.Warn("failed to send presence notice", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}
}
