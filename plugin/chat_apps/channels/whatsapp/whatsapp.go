// Package whatsapp implements the WhatsApp transport via an HTTP gateway.
// The gateway terminates the WhatsApp Business session and forwards inbound
// messages as JSON webhooks; outbound messages are posted back to it.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/store"
)

// Gateway headers. The gateway multiplexes tenants over one shared number
// and announces the binding, when it has one, via headers.
const (
	HeaderTenantID     = "X-Tenant-ID"
	HeaderVerticalMode = "X-Vertical-Mode"
)

// Config holds the gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// inboundPayload is the gateway's webhook body.
type inboundPayload struct {
	From      string `json:"from"` // E.164
	Text      string `json:"text,omitempty"`
	MediaKind string `json:"media_kind,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	Contact   *struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"contact,omitempty"`
	Timestamp int64 `json:"timestamp,omitempty"`
}

// outboundPayload is what we post back to the gateway.
type outboundPayload struct {
	To          string `json:"to"`
	Text        string `json:"text"`
	DocumentURL string `json:"document_url,omitempty"`
}

// Channel implements channels.ChatChannel over the gateway. WhatsApp has no
// inline buttons on this path, so button sets degrade to a numbered text
// menu and a bare number in the reply is mapped back to the payload it
// stood for.
type Channel struct {
	config *Config
	client *http.Client

	mu        sync.Mutex
	lastMenus map[string][]string // identity -> payloads of the last menu
}

func New(config *Config) *Channel {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Channel{
		config:    config,
		client:    &http.Client{Timeout: timeout},
		lastMenus: make(map[string][]string),
	}
}

func (w *Channel) Name() store.Channel {
	return store.ChannelWhatsApp
}

func (w *Channel) ParseMessage(ctx context.Context, headers map[string]string, payload []byte) (*chat_apps.Message, error) {
	var in inboundPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		slog.Warn("whatsapp: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}
	if in.From == "" {
		return nil, channels.ErrInvalidPayload
	}

	msg := &chat_apps.Message{
		Channel:         store.ChannelWhatsApp,
		ChannelIdentity: in.From,
		Text:            in.Text,
		Timestamp:       time.Now(),
	}
	if in.Timestamp > 0 {
		msg.Timestamp = time.Unix(in.Timestamp, 0)
	}
	if v := headers[HeaderTenantID]; v != "" {
		tenantID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, channels.ErrInvalidPayload
		}
		msg.TenantID = tenantID
	}
	if v := headers[HeaderVerticalMode]; v != "" {
		msg.Vertical = strings.ToLower(strings.TrimSpace(v))
	}
	if in.Contact != nil {
		msg.Contact = &chat_apps.Contact{Name: in.Contact.Name, Phone: in.Contact.Phone}
	}
	switch in.MediaKind {
	case "voice", "audio":
		msg.Media = chat_apps.MediaVoice
	case "image", "photo":
		msg.Media = chat_apps.MediaPhoto
	case "document":
		msg.Media = chat_apps.MediaDocument
	}
	if in.MediaURL != "" {
		msg.MediaRefs = []string{in.MediaURL}
	}

	// A bare number replying to the last menu selects that option.
	if payload, ok := w.menuSelection(in.From, in.Text); ok {
		msg.Button = payload
		msg.Text = ""
	}
	return msg, nil
}

func (w *Channel) menuSelection(identity, text string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return "", false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	payloads := w.lastMenus[identity]
	if n < 1 || n > len(payloads) {
		return "", false
	}
	delete(w.lastMenus, identity)
	return payloads[n-1], true
}

func (w *Channel) SendResponse(ctx context.Context, channelIdentity string, resp *chat_apps.BotResponse) error {
	if resp == nil {
		return nil
	}
	if resp.AdminAlert != nil {
		if err := w.post(ctx, &outboundPayload{
			To:   resp.AdminAlert.ChannelIdentity,
			Text: resp.AdminAlert.Text,
		}); err != nil {
			slog.Error("whatsapp: admin alert delivery failed",
				"admin_identity", resp.AdminAlert.ChannelIdentity, "error", err)
		}
	}

	text := resp.Text
	if len(resp.Buttons) > 0 {
		var b strings.Builder
		b.WriteString(text)
		for i, btn := range resp.Buttons {
			fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Label)
		}
		text = b.String()
		w.rememberMenu(channelIdentity, resp.Buttons)
	}
	if text == "" && resp.DocumentRef == "" {
		return nil
	}

	return w.post(ctx, &outboundPayload{
		To:          channelIdentity,
		Text:        text,
		DocumentURL: resp.DocumentRef,
	})
}

func (w *Channel) rememberMenu(identity string, buttons []chat_apps.Button) {
	payloads := make([]string, len(buttons))
	for i, b := range buttons {
		payloads[i] = b.Payload
	}
	w.mu.Lock()
	w.lastMenus[identity] = payloads
	w.mu.Unlock()
}

func (w *Channel) post(ctx context.Context, out *outboundPayload) error {
	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(w.config.BaseURL, "/")+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.config.APIKey)

	res, err := w.client.Do(req)
	if err != nil {
		return &channels.ChannelError{Code: "SEND_FAILED", Message: "gateway unreachable", Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return &channels.ChannelError{
			Code:    "SEND_FAILED",
			Message: fmt.Sprintf("gateway returned %d: %s", res.StatusCode, snippet),
		}
	}
	return nil
}

func (w *Channel) Close() error {
	return nil
}

var _ channels.ChatChannel = (*Channel)(nil)
