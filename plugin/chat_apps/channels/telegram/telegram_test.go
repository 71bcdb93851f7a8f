package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
)

func TestParseTextMessage(t *testing.T) {
	ch := &Channel{}
	payload := []byte(`{
		"update_id": 1,
		"message": {
			"message_id": 10,
			"chat": {"id": 123456},
			"from": {"id": 123456, "language_code": "fa"},
			"text": "/start realty_agent101"
		}
	}`)

	msg, err := ch.ParseMessage(context.Background(), map[string]string{HeaderTenantID: "7"}, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.TenantID)
	assert.Equal(t, "123456", msg.ChannelIdentity)
	assert.Equal(t, "/start realty_agent101", msg.Text)
	assert.Equal(t, "fa", msg.LocaleHint)
	assert.Equal(t, "realty_agent101", msg.CommandArgument("/start"))
}

func TestParseCallbackQuery(t *testing.T) {
	ch := &Channel{}
	payload := []byte(`{
		"update_id": 2,
		"callback_query": {
			"id": "cb1",
			"from": {"id": 123456, "language_code": "en"},
			"message": {"message_id": 11, "chat": {"id": 123456}},
			"data": "budget_2"
		}
	}`)

	msg, err := ch.ParseMessage(context.Background(), nil, payload)
	require.NoError(t, err)
	assert.Equal(t, "budget_2", msg.Button)
	assert.Equal(t, "123456", msg.ChannelIdentity)
}

func TestParseContactShare(t *testing.T) {
	ch := &Channel{}
	payload := []byte(`{
		"update_id": 3,
		"message": {
			"message_id": 12,
			"chat": {"id": 123456},
			"from": {"id": 123456},
			"contact": {"phone_number": "+971501234567", "first_name": "Sara", "last_name": "K"}
		}
	}`)

	msg, err := ch.ParseMessage(context.Background(), nil, payload)
	require.NoError(t, err)
	require.NotNil(t, msg.Contact)
	assert.Equal(t, "Sara K", msg.Contact.Name)
	assert.Equal(t, "+971501234567", msg.Contact.Phone)
}

func TestParseVoiceNote(t *testing.T) {
	ch := &Channel{}
	payload := []byte(`{
		"update_id": 4,
		"message": {
			"message_id": 13,
			"chat": {"id": 123456},
			"from": {"id": 123456},
			"voice": {"file_id": "voice-abc", "duration": 4}
		}
	}`)

	msg, err := ch.ParseMessage(context.Background(), nil, payload)
	require.NoError(t, err)
	assert.Equal(t, chat_apps.MediaVoice, msg.Media)
	require.Len(t, msg.MediaRefs, 1)
	assert.Equal(t, "telegram://file/voice-abc", msg.MediaRefs[0])
	assert.Empty(t, msg.Text, "voice without transcript is a zombie input")
}

func TestParseRejectsGarbage(t *testing.T) {
	ch := &Channel{}
	_, err := ch.ParseMessage(context.Background(), nil, []byte("not json"))
	assert.ErrorIs(t, err, channels.ErrInvalidPayload)

	_, err = ch.ParseMessage(context.Background(), nil, []byte(`{"update_id": 5}`))
	assert.ErrorIs(t, err, channels.ErrInvalidPayload)
}

func TestInlineKeyboardLayout(t *testing.T) {
	kb := inlineKeyboard([]chat_apps.Button{
		{Label: "A", Payload: "a"},
		{Label: "B", Payload: "b"},
		{Label: "C", Payload: "c"},
	})
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Len(t, kb.InlineKeyboard[1], 1)
	assert.Equal(t, "a", *kb.InlineKeyboard[0][0].CallbackData)
}
