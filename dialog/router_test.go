package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/session"
	"github.com/propflow/propflow/store"
	"github.com/propflow/propflow/store/storetest"
)

func newRouterFixture(t *testing.T) (*Router, *store.Store, *store.Tenant, session.Cache) {
	t.Helper()
	s := store.New(storetest.New(), &profile.Profile{})
	t.Cleanup(func() { _ = s.Close() })

	tenant, err := s.CreateTenant(context.Background(), &store.Tenant{
		Name:            "Marina Realty",
		DefaultLanguage: "en",
		Verticals: []store.Vertical{
			{Name: "realty", Keywords: []string{"property"}},
			{Name: "expo", Keywords: []string{"event"}},
		},
	})
	require.NoError(t, err)

	sessions := session.NewMemoryCache(time.Hour)
	return NewRouter(s, sessions), s, tenant, sessions
}

func gatewayMsg(tenantID int64, identity, text string) *chat_apps.Message {
	return &chat_apps.Message{
		TenantID:        tenantID,
		Channel:         store.ChannelWhatsApp,
		ChannelIdentity: identity,
		Text:            text,
	}
}

func TestRouteDeepLink(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, sessions := newRouterFixture(t)

	res, err := r.Route(ctx, gatewayMsg(tenant.ID, "+971501234567", "start_realty_agent101"))
	require.NoError(t, err)
	assert.True(t, res.Routed)
	assert.Equal(t, "realty", res.Vertical)
	assert.Equal(t, "agent101", res.Hint)

	route, err := sessions.GetRoute(ctx, "+971501234567")
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, tenant.ID, route.TenantID)
	assert.Equal(t, "agent101", route.Hint)

	// The next message without keywords continues in the same vertical.
	res, err = r.Route(ctx, gatewayMsg(0, "+971501234567", "hello"))
	require.NoError(t, err)
	assert.True(t, res.Routed)
	assert.Equal(t, "realty", res.Vertical)
}

func TestRouteDeepLinkFromStartCommand(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, _ := newRouterFixture(t)

	res, err := r.Route(ctx, gatewayMsg(tenant.ID, "900", "/start expo"))
	require.NoError(t, err)
	assert.True(t, res.Routed)
	assert.Equal(t, "expo", res.Vertical)
}

func TestRouteUnknownVerticalFallsBackToMenu(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, sessions := newRouterFixture(t)

	res, err := r.Route(ctx, gatewayMsg(tenant.ID, "901", "start_unknown"))
	require.NoError(t, err)
	assert.False(t, res.Routed)
	require.NotNil(t, res.Menu)
	assert.Len(t, res.Menu.Buttons, 2)

	route, err := sessions.GetRoute(ctx, "901")
	require.NoError(t, err)
	assert.Nil(t, route, "unknown vertical leaves no mapping")
}

func TestRouteKeyword(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, _ := newRouterFixture(t)

	res, err := r.Route(ctx, gatewayMsg(tenant.ID, "902", "I saw your Property ad"))
	require.NoError(t, err)
	assert.True(t, res.Routed)
	assert.Equal(t, "realty", res.Vertical)
}

func TestRouteMenuSelection(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, sessions := newRouterFixture(t)

	res, err := r.Route(ctx, gatewayMsg(tenant.ID, "904", "hello"))
	require.NoError(t, err)
	require.NotNil(t, res.Menu)
	require.NotEmpty(t, res.Menu.Buttons)

	// Pressing a menu option routes like the deep link it carries.
	msg := gatewayMsg(tenant.ID, "904", "")
	msg.Button = res.Menu.Buttons[0].Payload
	res, err = r.Route(ctx, msg)
	require.NoError(t, err)
	assert.True(t, res.Routed)
	assert.Equal(t, "realty", res.Vertical)
	assert.Nil(t, res.Menu)

	route, err := sessions.GetRoute(ctx, "904")
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, "realty", route.Vertical)
}

func TestRouteChannelAnnouncedVertical(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, sessions := newRouterFixture(t)

	// No session memory for this identity: the announced vertical alone
	// binds, and repopulates the memory.
	msg := gatewayMsg(tenant.ID, "905", "hello")
	msg.Vertical = "expo"
	res, err := r.Route(ctx, msg)
	require.NoError(t, err)
	assert.True(t, res.Routed)
	assert.Equal(t, "expo", res.Vertical)

	route, err := sessions.GetRoute(ctx, "905")
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, "expo", route.Vertical)
}

func TestRouteChannelAnnouncedUnknownVertical(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, _ := newRouterFixture(t)

	msg := gatewayMsg(tenant.ID, "906", "hello")
	msg.Vertical = "cars"
	res, err := r.Route(ctx, msg)
	require.NoError(t, err)
	assert.False(t, res.Routed)
	require.NotNil(t, res.Menu)
}

func TestRouteUnroutablePersonalMessage(t *testing.T) {
	ctx := context.Background()
	r, _, _, _ := newRouterFixture(t)

	// Shared number, no tenant, no keywords, no memory.
	res, err := r.Route(ctx, gatewayMsg(0, "+971509999999", "hey, are you coming tonight?"))
	require.NoError(t, err)
	assert.False(t, res.Routed)
	assert.Nil(t, res.Menu)
	assert.Nil(t, res.Tenant)
}

func TestDeepLinkOverwritesMemory(t *testing.T) {
	ctx := context.Background()
	r, _, tenant, _ := newRouterFixture(t)

	_, err := r.Route(ctx, gatewayMsg(tenant.ID, "903", "start_realty"))
	require.NoError(t, err)

	res, err := r.Route(ctx, gatewayMsg(tenant.ID, "903", "start_expo"))
	require.NoError(t, err)
	assert.True(t, res.Routed)
	assert.Equal(t, "expo", res.Vertical)
}
