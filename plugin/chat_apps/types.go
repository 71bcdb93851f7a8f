// Package chat_apps defines the canonical message records exchanged between
// the transport adapters and the qualification core. Supported channels:
// Telegram, WhatsApp (via gateway).
package chat_apps

import (
	"time"

	"github.com/propflow/propflow/store"
)

// MediaKind classifies non-text inbound content.
type MediaKind string

const (
	MediaNone     MediaKind = ""
	MediaPhoto    MediaKind = "photo"
	MediaVoice    MediaKind = "voice"
	MediaDocument MediaKind = "document"
)

// Contact is a native channel contact share.
type Contact struct {
	Name  string
	Phone string // raw, not yet normalized
}

// Message is the canonical inbound record every adapter normalizes to.
type Message struct {
	TenantID        int64
	Channel         store.Channel
	ChannelIdentity string // chat id or E.164 phone
	Text            string
	Button          string // callback payload, empty for plain text
	Vertical        string // channel-announced vertical binding, empty when unknown
	Contact         *Contact
	Media           MediaKind
	MediaRefs       []string
	LocaleHint      string // channel-reported language code, advisory only
	Timestamp       time.Time
}

// IsCommand reports whether the text is a slash command such as /start.
func (m *Message) IsCommand(cmd string) bool {
	if m.Text == cmd {
		return true
	}
	return len(m.Text) > len(cmd) && m.Text[:len(cmd)+1] == cmd+" "
}

// CommandArgument returns the payload after a slash command, e.g. the
// deep-link payload in "/start realty_agent101".
func (m *Message) CommandArgument(cmd string) string {
	if len(m.Text) > len(cmd)+1 && m.Text[:len(cmd)+1] == cmd+" " {
		return m.Text[len(cmd)+1:]
	}
	return ""
}

// Button is one inline option offered to the user.
type Button struct {
	Label   string
	Payload string
}

// AdminAlert is the out-of-band hot-lead notification attached to a turn.
// It must be delivered before (or atomically with) the user-facing text.
type AdminAlert struct {
	ChannelIdentity string
	Text            string
}

// BotResponse is the neutral outbound record adapters render. A nil
// response means the turn produced nothing to send.
type BotResponse struct {
	Text           string
	Buttons        []Button
	RequestContact bool
	DocumentRef    string
	AdminAlert     *AdminAlert
	Metadata       map[string]string
}

// WithAlert attaches an admin alert and returns the response for chaining.
func (r *BotResponse) WithAlert(channelIdentity, text string) *BotResponse {
	r.AdminAlert = &AdminAlert{ChannelIdentity: channelIdentity, Text: text}
	return r
}
