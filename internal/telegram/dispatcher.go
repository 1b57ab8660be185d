// Package telegram delivers notifications through the Telegram Bot API
// and decodes inbound webhook updates.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/casewatch/internal/types"
)

const maxTelegramMessage = 4096

// SettingsSource supplies the shared settings document, which may carry
// bot credentials that take precedence over the static config.
type SettingsSource interface {
	LoadSettings(ctx context.Context) (*types.Settings, error)
}

// Options configures a Dispatcher.
type Options struct {
	Token       string
	ChatID      string
	APIEndpoint string // format string as tgbotapi.APIEndpoint; empty means the public API
	Settings    SettingsSource
	Client      tgbotapi.HTTPClient
	Retry       *RetryPolicy
}

// Dispatcher sends chat messages. Sends are best effort: failures are
// logged and never returned to the caller.
type Dispatcher struct {
	token    string
	chatID   string
	endpoint string
	settings SettingsSource
	client   tgbotapi.HTTPClient
	retry    *RetryPolicy

	mu   sync.Mutex
	bots map[string]*tgbotapi.BotAPI
}

func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		token:    opts.Token,
		chatID:   opts.ChatID,
		endpoint: opts.APIEndpoint,
		settings: opts.Settings,
		client:   opts.Client,
		retry:    opts.Retry,
		bots:     make(map[string]*tgbotapi.BotAPI),
	}
	if d.endpoint == "" {
		d.endpoint = tgbotapi.APIEndpoint
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 30 * time.Second}
	}
	if d.retry == nil {
		d.retry = DefaultRetryPolicy()
	}
	return d
}

// Credentials resolves the bot token and default chat id. Values from the
// settings document win over the static config.
func (d *Dispatcher) Credentials(ctx context.Context) (token, chatID string) {
	token, chatID = d.token, d.chatID
	if d.settings == nil {
		return token, chatID
	}
	settings, err := d.settings.LoadSettings(ctx)
	if err != nil {
		slog.Warn("load settings for telegram credentials failed", "error", err)
		return token, chatID
	}
	if settings == nil {
		return token, chatID
	}
	if v := strings.TrimSpace(settings.TelegramToken); v != "" {
		token = v
	}
	if v := strings.TrimSpace(settings.TelegramChatID); v != "" {
		chatID = v
	}
	return token, chatID
}

// bot returns a client for token. It is built without the getMe round
// trip so a bad token only fails the send that uses it.
func (d *Dispatcher) bot(token string) *tgbotapi.BotAPI {
	d.mu.Lock()
	defer d.mu.Unlock()

	if bot, ok := d.bots[token]; ok {
		return bot
	}
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: d.client,
		Buffer: 100,
	}
	bot.SetAPIEndpoint(d.endpoint)
	d.bots[token] = bot
	return bot
}

// Send delivers msg as HTML. If Telegram rejects the markup the text is
// converted to plain markdown and sent again.
func (d *Dispatcher) Send(ctx context.Context, msg types.OutboundMessage) {
	token, chatID := d.Credentials(ctx)
	if msg.ChatID != "" {
		chatID = msg.ChatID
	}
	if token == "" || chatID == "" {
		slog.Debug("telegram send skipped, missing credentials")
		return
	}
	bot := d.bot(token)

	parts := splitMessage(msg.Text)
	for i, part := range parts {
		cfg := newMessage(chatID, part)
		cfg.ParseMode = tgbotapi.ModeHTML
		if msg.QuickReplies && i == len(parts)-1 {
			cfg.ReplyMarkup = quickReplyKeyboard()
		}

		err := d.send(ctx, bot, cfg)
		if err != nil && isParseError(err) {
			slog.Warn("telegram rejected html, retrying as plain text", "error", err)
			cfg.Text = plainText(part)
			cfg.ParseMode = ""
			err = d.send(ctx, bot, cfg)
		}
		if err != nil {
			slog.Error("telegram send failed", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, bot *tgbotapi.BotAPI, cfg tgbotapi.MessageConfig) error {
	return d.retry.Execute(ctx, func() error {
		_, err := bot.Send(cfg)
		return err
	})
}

// AnswerInteraction acknowledges an inline-button press so the client
// stops showing its progress indicator.
func (d *Dispatcher) AnswerInteraction(ctx context.Context, interactionID string) {
	token, _ := d.Credentials(ctx)
	if token == "" || interactionID == "" {
		return
	}
	bot := d.bot(token)
	err := d.retry.Execute(ctx, func() error {
		_, err := bot.Request(tgbotapi.NewCallback(interactionID, ""))
		return err
	})
	if err != nil {
		slog.Warn("answer callback failed", "callback_id", interactionID, "error", err)
	}
}

// newMessage addresses a numeric chat id directly and anything else as a
// channel username.
func newMessage(chatID, text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	if !strings.HasPrefix(chatID, "@") {
		chatID = "@" + chatID
	}
	return tgbotapi.NewMessageToChannel(chatID, text)
}

func quickReplyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 今日行程", "/today"),
			tgbotapi.NewInlineKeyboardButtonData("📊 本週匯總", "/summary"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 待辦提醒", "/reminders"),
		),
	)
}

func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "parse entities")
}

// plainText converts an HTML message line by line so line breaks survive.
func plainText(html string) string {
	lines := strings.Split(html, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		md, err := htmltomarkdown.ConvertString(line)
		if err != nil {
			continue
		}
		lines[i] = strings.TrimSpace(md)
	}
	return strings.Join(lines, "\n")
}

// splitMessage cuts text into chunks Telegram accepts, preferring line
// breaks and never splitting a multi-byte character.
func splitMessage(text string) []string {
	runes := []rune(text)
	if len(runes) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(runes) > 0 {
		end := maxTelegramMessage
		if end >= len(runes) {
			parts = append(parts, string(runes))
			break
		}
		for i := end; i > end/2; i-- {
			if runes[i-1] == '\n' {
				end = i
				break
			}
		}
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}

// SetWebhook registers url with Telegram. A non-empty secret is echoed by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header of every update.
func (d *Dispatcher) SetWebhook(ctx context.Context, url, secret string) error {
	token, _ := d.Credentials(ctx)
	if token == "" {
		return fmt.Errorf("set webhook: no bot token configured")
	}
	params := make(tgbotapi.Params)
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	params["allowed_updates"] = `["message","callback_query"]`
	if _, err := d.bot(token).MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook and drops pending updates.
func (d *Dispatcher) DeleteWebhook(ctx context.Context) error {
	token, _ := d.Credentials(ctx)
	if token == "" {
		return fmt.Errorf("delete webhook: no bot token configured")
	}
	if _, err := d.bot(token).Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// WebhookInfo reports the webhook Telegram currently has on file.
func (d *Dispatcher) WebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error) {
	token, _ := d.Credentials(ctx)
	if token == "" {
		return tgbotapi.WebhookInfo{}, fmt.Errorf("webhook info: no bot token configured")
	}
	info, err := d.bot(token).GetWebhookInfo()
	if err != nil {
		return tgbotapi.WebhookInfo{}, fmt.Errorf("webhook info: %w", err)
	}
	return info, nil
}
