package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ihiteshgupta/groupguard/internal/bot"
)

// Poll long-polls getUpdates until ctx is done and hands every converted
// event to emit. Failures back off exponentially via the health monitor.
func (c *Client) Poll(ctx context.Context, emit func(bot.Event)) {
	offset := 0
	timeout := int(c.pollTimeout / time.Second)

	c.log.Info("polling for updates", zap.Int("timeout_seconds", timeout))
	for ctx.Err() == nil {
		cfg := tgbotapi.NewUpdate(offset)
		cfg.Timeout = timeout
		cfg.AllowedUpdates = allowedUpdates

		updates, err := c.api.GetUpdates(cfg)
		if err != nil {
			delay := c.health.NextReconnectDelay()
			c.log.Warn("failed to get updates",
				zap.Duration("retry_in", delay),
				zap.Int("reconnects", c.health.GetReconnectCount()),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
			continue
		}
		if !c.health.Connected() {
			c.health.OnConnectionRestored()
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			for _, evt := range c.Convert(u) {
				emit(evt)
			}
		}
	}
	c.log.Info("update polling stopped")
}
