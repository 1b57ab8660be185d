package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/casewatch/internal/types"
)

// Chat commands.
const (
	CommandStart     = "/start"
	CommandToday     = "/today"
	CommandSummary   = "/summary"
	CommandReminders = "/reminders"
)

const summaryTriggered = "✅ 已手動觸發每週匯總報表。"

// handleChat records the delivery in the ledger before doing anything
// else, so a concurrent duplicate is rejected even mid-processing.
func (g *Gateway) handleChat(ctx context.Context, ev *types.ChatEvent) (*Response, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: empty chat event", types.ErrInvalidPayload)
	}
	// Duplicates are left to the delivery that recorded them; every other
	// exit answers the button press, ledger failures included.
	answer := ev.IsInteraction()
	defer func() {
		if answer {
			g.answer(ctx, ev.CallbackID)
		}
	}()

	id := ev.InboundID()
	fresh, err := g.ledger.Record(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: record inbound %s: %w", ErrLedger, id, err)
	}
	if !fresh {
		answer = false
		slog.Info("duplicate delivery ignored", "inbound_id", id)
		return &Response{Status: StatusOK}, nil
	}

	g.logDebug(ctx, ev)
	if err := g.interpret(ctx, ev); err != nil {
		return nil, err
	}
	return &Response{Status: StatusOK}, nil
}

// answer acknowledges an inline button press. It runs on every exit path
// of handleChat, including panics in the command.
func (g *Gateway) answer(ctx context.Context, callbackID string) {
	if g.dispatcher != nil {
		g.dispatcher.AnswerInteraction(ctx, callbackID)
	}
}

func (g *Gateway) interpret(ctx context.Context, ev *types.ChatEvent) error {
	cmd := Command(ev.Text)
	if cmd == "" {
		return nil
	}
	slog.Info("chat command", "command", cmd, "chat_id", ev.ChatID, "from", ev.From)

	switch cmd {
	case CommandStart:
		g.reply(ctx, ev.ChatID, StartMessage(ev.ChatType))
	case CommandToday:
		if err := g.queries.SendToday(ctx, ev.ChatID, g.queries.Now()); err != nil {
			return fmt.Errorf("send today: %w", err)
		}
	case CommandReminders:
		if err := g.queries.SendPendingReminders(ctx, ev.ChatID); err != nil {
			return fmt.Errorf("send reminders: %w", err)
		}
	case CommandSummary:
		sent, err := g.queries.SendDigest(ctx, ev.ChatID, g.queries.Now())
		if err != nil {
			return fmt.Errorf("send summary: %w", err)
		}
		if sent {
			g.reply(ctx, ev.ChatID, summaryTriggered)
		}
	default:
		slog.Debug("unknown chat command", "command", cmd)
	}
	return nil
}

func (g *Gateway) reply(ctx context.Context, chatID, text string) {
	if g.dispatcher == nil {
		return
	}
	g.dispatcher.Send(ctx, types.OutboundMessage{ChatID: chatID, Text: text, QuickReplies: true})
}

func (g *Gateway) logDebug(ctx context.Context, ev *types.ChatEvent) {
	if g.debug == nil {
		return
	}
	entry := &types.DebugEntry{
		At:     time.Now(),
		Kind:   "command",
		ChatID: ev.ChatID,
		Text:   fmt.Sprintf("Command: %s | From: %s | Chat: %s (%s)", ev.Text, ev.From, ev.ChatID, ev.ChatType),
	}
	if err := g.debug.Append(ctx, entry); err != nil {
		slog.Warn("debug log append failed", "error", err)
	}
}

// Command extracts the command of a chat message, dropping arguments and
// any @botname suffix. Text that is not a command yields "".
func Command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

// StartMessage is the reply to /start.
func StartMessage(chatType string) string {
	room := "群組/頻道"
	if chatType == "private" {
		room = "私訊"
	}
	return "<b>🤖 案件通知助手已啟動</b>\n\n目前對話類型：<b>" + room + "</b>\n\n您可以使用下方按鈕操作："
}
