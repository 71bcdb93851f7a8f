package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
)

func TestParseInbound(t *testing.T) {
	ch := New(&Config{BaseURL: "http://gateway"})

	msg, err := ch.ParseMessage(context.Background(),
		map[string]string{HeaderTenantID: "7", HeaderVerticalMode: "Realty"},
		[]byte(`{"from": "+971501234567", "text": "I saw your property ad"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.TenantID)
	assert.Equal(t, "realty", msg.Vertical)
	assert.Equal(t, "+971501234567", msg.ChannelIdentity)
	assert.Equal(t, "I saw your property ad", msg.Text)
}

func TestParseRejectsMissingSender(t *testing.T) {
	ch := New(&Config{})
	_, err := ch.ParseMessage(context.Background(), nil, []byte(`{"text": "hi"}`))
	assert.ErrorIs(t, err, channels.ErrInvalidPayload)
}

func TestNumberedMenuRoundTrip(t *testing.T) {
	var sent []outboundPayload
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var out outboundPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&out))
		sent = append(sent, out)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := New(&Config{BaseURL: srv.URL, APIKey: "secret"})
	ctx := context.Background()

	err := ch.SendResponse(ctx, "+971501234567", &chat_apps.BotResponse{
		Text: "Buying or renting?",
		Buttons: []chat_apps.Button{
			{Label: "Buy", Payload: "txn_buy"},
			{Label: "Rent", Payload: "txn_rent"},
		},
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "1. Buy")
	assert.Contains(t, sent[0].Text, "2. Rent")

	// The user answers "2": the adapter maps it back to the rent payload.
	msg, err := ch.ParseMessage(ctx, nil, []byte(`{"from": "+971501234567", "text": "2"}`))
	require.NoError(t, err)
	assert.Equal(t, "txn_rent", msg.Button)
	assert.Empty(t, msg.Text)

	// The menu is consumed; a later "2" is just text again.
	msg, err = ch.ParseMessage(ctx, nil, []byte(`{"from": "+971501234567", "text": "2"}`))
	require.NoError(t, err)
	assert.Empty(t, msg.Button)
	assert.Equal(t, "2", msg.Text)
}

func TestSendGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := New(&Config{BaseURL: srv.URL})
	err := ch.SendResponse(context.Background(), "+971501234567", &chat_apps.BotResponse{Text: "hi"})
	require.Error(t, err)

	var cherr *channels.ChannelError
	require.ErrorAs(t, err, &cherr)
	assert.True(t, cherr.IsRetryable())
}

func TestAdminAlertSentFirst(t *testing.T) {
	var order []string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var out outboundPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&out))
		order = append(order, out.To)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := New(&Config{BaseURL: srv.URL})
	resp := (&chat_apps.BotResponse{Text: "thanks"}).WithAlert("+971500000001", "🔥 Hot lead")
	require.NoError(t, ch.SendResponse(context.Background(), "+971501234567", resp))
	assert.Equal(t, []string{"+971500000001", "+971501234567"}, order)
}
