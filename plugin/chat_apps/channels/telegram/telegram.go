// Package telegram implements the Telegram Bot transport.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/store"
)

// HeaderTenantID carries the tenant resolved from the webhook path. The
// server injects it before handing the payload to the adapter.
const HeaderTenantID = "X-Tenant-ID"

const maxButtonsPerRow = 2

// Config holds the Telegram bot credentials.
type Config struct {
	BotToken string
}

// Channel implements channels.ChatChannel over the Telegram Bot API.
type Channel struct {
	bot    *tgbotapi.BotAPI
	client *http.Client
}

func New(config *Config) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &Channel{
		bot: bot,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DisableCompression: true,
			},
		},
	}, nil
}

func (t *Channel) Name() store.Channel {
	return store.ChannelTelegram
}

// ParseMessage normalizes a Telegram update. Callback queries become button
// presses; contact shares, voice notes, photos and documents all map onto
// the canonical record.
func (t *Channel) ParseMessage(ctx context.Context, headers map[string]string, payload []byte) (*chat_apps.Message, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}

	msg := &chat_apps.Message{
		Channel:   store.ChannelTelegram,
		Timestamp: time.Now(),
	}
	if v := headers[HeaderTenantID]; v != "" {
		tenantID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, channels.ErrInvalidPayload
		}
		msg.TenantID = tenantID
	}

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		msg.Button = cq.Data
		msg.ChannelIdentity = strconv.FormatInt(cq.From.ID, 10)
		msg.LocaleHint = cq.From.LanguageCode
		if cq.Message != nil {
			msg.ChannelIdentity = strconv.FormatInt(cq.Message.Chat.ID, 10)
		}
		// Ack so the client stops showing the spinner.
		if t.bot != nil {
			if _, err := t.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
				slog.Debug("telegram: callback ack failed", "error", err)
			}
		}
		return msg, nil

	case update.Message != nil:
		return t.parseMessage(update.Message, msg)

	default:
		return nil, channels.ErrInvalidPayload
	}
}

func (t *Channel) parseMessage(tgMsg *tgbotapi.Message, msg *chat_apps.Message) (*chat_apps.Message, error) {
	msg.ChannelIdentity = strconv.FormatInt(tgMsg.Chat.ID, 10)
	msg.Text = tgMsg.Text
	if tgMsg.From != nil {
		msg.LocaleHint = tgMsg.From.LanguageCode
	}

	switch {
	case tgMsg.Contact != nil:
		name := strings.TrimSpace(tgMsg.Contact.FirstName + " " + tgMsg.Contact.LastName)
		msg.Contact = &chat_apps.Contact{Name: name, Phone: tgMsg.Contact.PhoneNumber}

	case tgMsg.Voice != nil:
		msg.Media = chat_apps.MediaVoice
		msg.MediaRefs = []string{fileRef(tgMsg.Voice.FileID)}

	case len(tgMsg.Photo) > 0:
		msg.Media = chat_apps.MediaPhoto
		largest := tgMsg.Photo[len(tgMsg.Photo)-1]
		msg.MediaRefs = []string{fileRef(largest.FileID)}
		msg.Text = tgMsg.Caption

	case tgMsg.Document != nil:
		msg.Media = chat_apps.MediaDocument
		msg.MediaRefs = []string{fileRef(tgMsg.Document.FileID)}
		msg.Text = tgMsg.Caption
	}
	return msg, nil
}

func fileRef(fileID string) string {
	return "telegram://file/" + fileID
}

// SendResponse renders a BotResponse. The admin alert, when attached, goes
// out before the user-facing text so a delivery failure on the user side
// never loses the hot-lead ping.
func (t *Channel) SendResponse(ctx context.Context, channelIdentity string, resp *chat_apps.BotResponse) error {
	if resp == nil {
		return nil
	}
	if resp.AdminAlert != nil {
		if err := t.sendAlert(resp.AdminAlert); err != nil {
			slog.Error("telegram: admin alert delivery failed",
				"admin_identity", resp.AdminAlert.ChannelIdentity, "error", err)
		}
	}
	if resp.Text == "" && resp.DocumentRef == "" {
		return nil
	}

	chatID, err := strconv.ParseInt(channelIdentity, 10, 64)
	if err != nil {
		return &channels.ChannelError{Code: "INVALID_IDENTITY", Message: "chat id is not numeric", Err: err}
	}

	if resp.Text != "" {
		tgMsg := tgbotapi.NewMessage(chatID, resp.Text)
		switch {
		case resp.RequestContact:
			label := resp.Metadata["contact_button"]
			if label == "" {
				label = "📱 Share my contact"
			}
			keyboard := tgbotapi.NewOneTimeReplyKeyboard(
				tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(label)),
			)
			tgMsg.ReplyMarkup = keyboard
		case len(resp.Buttons) > 0:
			tgMsg.ReplyMarkup = inlineKeyboard(resp.Buttons)
		}
		if _, err := t.bot.Send(tgMsg); err != nil {
			return &channels.ChannelError{Code: "SEND_FAILED", Message: "message delivery failed", Err: err}
		}
	}

	if resp.DocumentRef != "" {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileURL(resp.DocumentRef))
		if _, err := t.bot.Send(doc); err != nil {
			return &channels.ChannelError{Code: "SEND_FAILED", Message: "document delivery failed", Err: err}
		}
	}
	return nil
}

func (t *Channel) sendAlert(alert *chat_apps.AdminAlert) error {
	chatID, err := strconv.ParseInt(alert.ChannelIdentity, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid admin chat id %q: %w", alert.ChannelIdentity, err)
	}
	_, err = t.bot.Send(tgbotapi.NewMessage(chatID, alert.Text))
	return err
}

// inlineKeyboard lays the buttons out two per row.
func inlineKeyboard(buttons []chat_apps.Button) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, b := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Payload))
		if len(row) == maxButtonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (t *Channel) Close() error {
	return nil
}

var _ channels.ChatChannel = (*Channel)(nil)
