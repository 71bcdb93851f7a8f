package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/ai/oracle"
	"github.com/propflow/propflow/ai/retrieval"
	"github.com/propflow/propflow/dialog"
	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/session"
	"github.com/propflow/propflow/store"
	"github.com/propflow/propflow/store/storetest"
)

// testChannel parses a minimal JSON payload and records sends.
type testChannel struct {
	mu    sync.Mutex
	sends []*chat_apps.BotResponse
}

func (tc *testChannel) Name() store.Channel { return store.ChannelTelegram }

func (tc *testChannel) ParseMessage(_ context.Context, headers map[string]string, payload []byte) (*chat_apps.Message, error) {
	var in struct {
		Identity string `json:"identity"`
		Text     string `json:"text"`
		Button   string `json:"button"`
	}
	if err := json.Unmarshal(payload, &in); err != nil || in.Identity == "" {
		return nil, channels.ErrInvalidPayload
	}
	msg := &chat_apps.Message{
		Channel:         store.ChannelTelegram,
		ChannelIdentity: in.Identity,
		Text:            in.Text,
		Button:          in.Button,
		Timestamp:       time.Now(),
	}
	if v := headers["X-Tenant-ID"]; v != "" {
		var id int64
		if err := json.Unmarshal([]byte(v), &id); err == nil {
			msg.TenantID = id
		}
	}
	return msg, nil
}

func (tc *testChannel) SendResponse(_ context.Context, _ string, resp *chat_apps.BotResponse) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.sends = append(tc.sends, resp)
	return nil
}

func (tc *testChannel) Close() error { return nil }

func (tc *testChannel) sent() []*chat_apps.BotResponse {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]*chat_apps.BotResponse(nil), tc.sends...)
}

func newTestServer(t *testing.T) (*Server, *testChannel, *store.Tenant) {
	t.Helper()
	p := &profile.Profile{TurnTimeout: 15 * time.Second}
	s := store.New(storetest.New(), p)
	t.Cleanup(func() { _ = s.Close() })

	tenant, err := s.CreateTenant(context.Background(), &store.Tenant{
		Name:            "Marina Realty",
		DefaultLanguage: "en",
		Verticals:       []store.Vertical{{Name: "realty"}},
	})
	require.NoError(t, err)

	machine := dialog.NewMachine(s, session.NewMemoryCache(time.Hour), oracle.Disabled{}, retrieval.New(s))
	ch := &testChannel{}
	registry := channels.NewRegistry()
	registry.Register(ch)

	return New(p, s, machine, registry), ch, tenant
}

func post(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestWebhookProcessesTurn(t *testing.T) {
	srv, ch, _ := newTestServer(t)

	rec := post(t, srv, "/webhooks/telegram/1", `{"identity": "900", "text": "/start realty"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	sends := ch.sent()
	require.Len(t, sends, 1)
	assert.NotEmpty(t, sends[0].Buttons, "first turn offers the language picker")
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	srv, ch, _ := newTestServer(t)

	rec := post(t, srv, "/webhooks/telegram/1", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ch.sent())
}

func TestWebhookRejectsNonNumericTenant(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := post(t, srv, "/webhooks/telegram/acme", `{"identity": "900", "text": "hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookUnknownTenantIsRetryable(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Tenant 99 does not exist: configuration error, not a retryable fault.
	rec := post(t, srv, "/webhooks/telegram/99", `{"identity": "900", "text": "/start realty"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "propflow_admin_alerts_total")
}
