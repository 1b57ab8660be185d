package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/casewatch/internal/types"
)

// SecretHeader carries the webhook secret on inbound updates.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ParseUpdate decodes a webhook body. It returns nil for update kinds
// that carry neither a text message nor a button press.
func ParseUpdate(data []byte) (*types.ChatEvent, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return EventFromUpdate(&update), nil
}

// EventFromUpdate maps an update onto a ChatEvent.
func EventFromUpdate(update *tgbotapi.Update) *types.ChatEvent {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		event := &types.ChatEvent{
			CallbackID: cb.ID,
			Text:       cb.Data,
		}
		if cb.From != nil {
			event.From = cb.From.UserName
		}
		if cb.Message != nil && cb.Message.Chat != nil {
			event.ChatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
			event.ChatType = cb.Message.Chat.Type
		}
		return event
	case update.Message != nil:
		return eventFromMessage(update.Message)
	case update.ChannelPost != nil:
		return eventFromMessage(update.ChannelPost)
	default:
		return nil
	}
}

func eventFromMessage(msg *tgbotapi.Message) *types.ChatEvent {
	event := &types.ChatEvent{
		MessageID: msg.MessageID,
		Text:      strings.TrimSpace(msg.Text),
	}
	if msg.From != nil {
		event.From = msg.From.UserName
	}
	if msg.Chat != nil {
		event.ChatID = strconv.FormatInt(msg.Chat.ID, 10)
		event.ChatType = msg.Chat.Type
	}
	return event
}
