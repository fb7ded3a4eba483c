package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ihiteshgupta/groupguard/internal/platform"
)

// Descriptions that mean the chat or user is gone, or the bot is no longer in it.
var notFoundDescriptions = []string{
	"chat not found",
	"user not found",
	"message to delete not found",
	"message to edit not found",
	"message to pin not found",
	"participant_id_invalid",
	"bot was kicked",
	"bot is not a member",
	"group chat was upgraded",
	"chat was deleted",
}

// classify maps a Bot API error onto the platform error classes. The API
// description stays in the message.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	desc := strings.ToLower(apiErr.Message)
	for _, s := range notFoundDescriptions {
		if strings.Contains(desc, s) {
			return fmt.Errorf("%w: %s", platform.ErrNotFound, apiErr.Message)
		}
	}
	if apiErr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", platform.ErrForbidden, apiErr.Message)
	}
	return err
}

func isUnauthorized(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized
	}
	return strings.Contains(strings.ToLower(err.Error()), "unauthorized")
}
