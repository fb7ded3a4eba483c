package moderation

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/platform"
)

// LogEntry is one moderation log line sent to the configured log chat.
type LogEntry struct {
	Action   string
	Chat     platform.Chat
	Actor    platform.Actor
	Target   platform.Actor
	At       time.Time
	Duration time.Duration
	Reason   string
}

// Render formats the entry in rich markup.
func (e LogEntry) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%s\n", strings.ToUpper(e.Action))
	fmt.Fprintf(&b, "<b>Chat:</b> %s (<code>%d</code>)\n", html.EscapeString(e.Chat.Title), e.Chat.ID)
	fmt.Fprintf(&b, "<b>Admin:</b> %s\n", e.Actor.Mention())
	fmt.Fprintf(&b, "<b>User:</b> %s (<code>%d</code>)\n", e.Target.Mention(), e.Target.ID)
	if e.Duration > 0 {
		fmt.Fprintf(&b, "<b>Duration:</b> %s\n", FormatDuration(e.Duration))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, "<b>Reason:</b> %s\n", html.EscapeString(e.Reason))
	}
	fmt.Fprintf(&b, "<b>Time:</b> %s", e.At.UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

// Logger delivers log entries to the configured log chat. Delivery failures
// are logged and otherwise ignored.
type Logger struct {
	client   platform.Client
	settings *Settings
	log      *zap.Logger
}

// NewLogger creates a moderation log emitter.
func NewLogger(client platform.Client, settings *Settings, log *zap.Logger) *Logger {
	return &Logger{client: client, settings: settings, log: log.Named("modlog")}
}

// Emit sends the entry if a log chat is configured.
func (l *Logger) Emit(ctx context.Context, e LogEntry) {
	target := l.settings.LogChat()
	if target == 0 {
		return
	}
	if _, err := l.client.Send(ctx, target, e.Render(), platform.SendOptions{Format: platform.FormatRich}); err != nil {
		l.log.Warn("failed to send moderation log",
			zap.Int64("log_chat", target),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}
