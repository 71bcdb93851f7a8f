package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/store"
	"github.com/propflow/propflow/store/storetest"
)

type sentMessage struct {
	Identity string
	Response *chat_apps.BotResponse
}

// fakeChannel records outbound deliveries.
type fakeChannel struct {
	name store.Channel

	mu    sync.Mutex
	sends []sentMessage
}

func (f *fakeChannel) Name() store.Channel { return f.name }

func (f *fakeChannel) ParseMessage(context.Context, map[string]string, []byte) (*chat_apps.Message, error) {
	return nil, channels.ErrInvalidPayload
}

func (f *fakeChannel) SendResponse(_ context.Context, identity string, resp *chat_apps.BotResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentMessage{Identity: identity, Response: resp})
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sends...)
}

type workerFixture struct {
	store    *store.Store
	registry *channels.Registry
	telegram *fakeChannel
	tenant   *store.Tenant
	now      time.Time
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	s := store.New(storetest.New(), &profile.Profile{})
	t.Cleanup(func() { _ = s.Close() })

	tenant, err := s.CreateTenant(context.Background(), &store.Tenant{
		Name:                 "Marina Realty",
		DefaultLanguage:      "en",
		AdminChannel:         store.ChannelTelegram,
		AdminChannelIdentity: "admin-chat",
		Verticals:            []store.Vertical{{Name: "realty"}},
	})
	require.NoError(t, err)

	telegram := &fakeChannel{name: store.ChannelTelegram}
	registry := channels.NewRegistry()
	registry.Register(telegram)

	return &workerFixture{
		store:    s,
		registry: registry,
		telegram: telegram,
		tenant:   tenant,
		now:      time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func (f *workerFixture) createLead(t *testing.T, lead *store.Lead) *store.Lead {
	t.Helper()
	lead.TenantID = f.tenant.ID
	if lead.Channel == "" {
		lead.Channel = store.ChannelTelegram
	}
	created, err := f.store.CreateLead(context.Background(), lead)
	require.NoError(t, err)
	return created
}

func (f *workerFixture) lead(t *testing.T, id int64) *store.Lead {
	t.Helper()
	lead, err := f.store.GetLead(context.Background(), &store.FindLead{ID: &id})
	require.NoError(t, err)
	require.NotNil(t, lead)
	return lead
}

func TestGhostNudgesInactiveLeads(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t)

	quiet := f.createLead(t, &store.Lead{
		ChannelIdentity: "quiet",
		Phone:           "+971501234567",
		Language:        "fa",
		State:           store.StateSlotFilling,
		Status:          store.StatusQualified,
		LastInteraction: f.now.Add(-2 * time.Hour), // exactly at the boundary
	})
	f.createLead(t, &store.Lead{
		ChannelIdentity: "recent",
		Phone:           "+971501234568",
		State:           store.StateSlotFilling,
		LastInteraction: f.now.Add(-2*time.Hour + time.Minute),
	})
	f.createLead(t, &store.Lead{
		ChannelIdentity: "no-phone",
		State:           store.StateSlotFilling,
		LastInteraction: f.now.Add(-5 * time.Hour),
	})
	f.createLead(t, &store.Lead{
		ChannelIdentity: "done",
		Phone:           "+971501234569",
		State:           store.StateCompleted,
		LastInteraction: f.now.Add(-5 * time.Hour),
	})

	g := NewGhost(f.store, f.registry)
	g.now = func() time.Time { return f.now }

	require.NoError(t, g.Tick(ctx))

	sends := f.telegram.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "quiet", sends[0].Identity)
	assert.Contains(t, sends[0].Response.Text, "همکارم", "nudge uses the lead's language")

	after := f.lead(t, quiet.ID)
	assert.True(t, after.GhostReminderSent)
	assert.Equal(t, 1, after.FomoMessagesSent)
	assert.True(t, after.LastInteraction.Equal(f.now))

	// The nudge is one-off: a second sweep finds nothing.
	require.NoError(t, g.Tick(ctx))
	assert.Len(t, f.telegram.sent(), 1)
}

func TestMatcherBudgetFlex(t *testing.T) {
	lead := &store.Lead{
		Status:           store.StatusQualified,
		PropertyCategory: store.CategoryResidential,
		BudgetMin:        500_000,
		BudgetMax:        700_000,
	}

	within := &store.Property{PropertyCategory: store.CategoryResidential, Price: 770_000}
	assert.True(t, Matches(lead, within), "10 percent over budget still matches")

	over := &store.Property{PropertyCategory: store.CategoryResidential, Price: 780_000}
	assert.False(t, Matches(lead, over))

	under := &store.Property{PropertyCategory: store.CategoryResidential, Price: 400_000}
	assert.False(t, Matches(lead, under))

	// Open top band: no ceiling at all.
	lead.BudgetMin, lead.BudgetMax = 750_000, 0
	assert.True(t, Matches(lead, &store.Property{PropertyCategory: store.CategoryResidential, Price: 10_000_000}))
}

func TestMatchesCriteria(t *testing.T) {
	lead := &store.Lead{
		PropertyCategory:   store.CategoryResidential,
		PropertyType:       "villa",
		BudgetMax:          2_000_000,
		BedroomsMin:        3,
		BedroomsMax:        5,
		PreferredLocations: []string{"Palm Jumeirah"},
	}
	p := &store.Property{
		PropertyCategory: store.CategoryResidential,
		PropertyType:     "villa",
		Price:            1_800_000,
		Bedrooms:         4,
		Location:         "Frond M, Palm Jumeirah, Dubai",
	}
	assert.True(t, Matches(lead, p))

	wrongType := *p
	wrongType.PropertyType = "apartment"
	assert.False(t, Matches(lead, &wrongType))

	tooSmall := *p
	tooSmall.Bedrooms = 2
	assert.False(t, Matches(lead, &tooSmall))

	elsewhere := *p
	elsewhere.Location = "Dubai Marina"
	assert.False(t, Matches(lead, &elsewhere))
}

func TestMatcherNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t)

	lead := f.createLead(t, &store.Lead{
		ChannelIdentity:  "buyer",
		Phone:            "+971501234567",
		State:            store.StateEngagement,
		Status:           store.StatusQualified,
		PropertyCategory: store.CategoryResidential,
		BudgetMin:        500_000,
		BudgetMax:        700_000,
	})
	f.createLead(t, &store.Lead{
		ChannelIdentity: "unqualified",
		Status:          store.StatusNew,
	})

	_, err := f.store.CreateProperty(ctx, &store.Property{
		TenantID:         f.tenant.ID,
		Title:            "Creek Vista 2BR",
		Location:         "Dubai Creek Harbour",
		Price:            650_000,
		PropertyCategory: store.CategoryResidential,
		IsAvailable:      true,
	})
	require.NoError(t, err)
	_, err = f.store.CreateProperty(ctx, &store.Property{
		TenantID:         f.tenant.ID,
		Title:            "Emaar Penthouse",
		Location:         "Downtown",
		Price:            3_000_000,
		PropertyCategory: store.CategoryResidential,
		IsAvailable:      true,
	})
	require.NoError(t, err)

	m := NewMatcher(f.store, f.registry, nil)
	m.now = func() time.Time { return f.now }

	require.NoError(t, m.Tick(ctx))

	sends := f.telegram.sent()
	require.Len(t, sends, 1, "only the in-budget property for the qualified lead")
	assert.Equal(t, "buyer", sends[0].Identity)
	assert.Contains(t, sends[0].Response.Text, "Creek Vista 2BR")
	assert.Contains(t, sends[0].Response.Text, "just matched your search")
	assert.Contains(t, sends[0].Response.Text, "people viewed this today")

	matched := f.lead(t, lead.ID)
	assert.Equal(t, 1, matched.FomoMessagesSent)
	assert.Equal(t, 1, matched.UrgencyScore, "the scarcity-annotated card moves urgency")

	// The ledger makes re-scans silent.
	require.NoError(t, m.Tick(ctx))
	assert.Len(t, f.telegram.sent(), 1)
}

type stubReports struct{ ref string }

func (s *stubReports) ROIReport(context.Context, *store.Property, string) (string, error) {
	return s.ref, nil
}

func TestMatcherAttachesROIReport(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t)

	lead := f.createLead(t, &store.Lead{
		ChannelIdentity: "investor",
		Status:          store.StatusHot,
		UrgencyScore:    10,
		BudgetMin:       500_000,
		BudgetMax:       2_000_000,
	})
	_, err := f.store.CreateProperty(ctx, &store.Property{
		TenantID:    f.tenant.ID,
		Title:       "JVC 1BR",
		Price:       800_000,
		ExpectedROI: 7.2,
		IsAvailable: true,
	})
	require.NoError(t, err)

	m := NewMatcher(f.store, f.registry, &stubReports{ref: "doc-123"})
	m.now = func() time.Time { return f.now }
	require.NoError(t, m.Tick(ctx))

	sends := f.telegram.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "doc-123", sends[0].Response.DocumentRef)
	assert.Equal(t, 10, f.lead(t, lead.ID).UrgencyScore, "urgency stays capped")
}

func TestDigestSummarizesToAdmin(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t)

	f.createLead(t, &store.Lead{ChannelIdentity: "a", Status: store.StatusNew})
	f.createLead(t, &store.Lead{ChannelIdentity: "b", Status: store.StatusHot})

	d := NewDigest(f.store, f.registry)
	d.now = func() time.Time { return time.Now() }

	require.NoError(t, d.Tick(ctx))

	sends := f.telegram.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "admin-chat", sends[0].Identity)
	assert.Contains(t, sends[0].Response.Text, "2 new leads")
	assert.Contains(t, sends[0].Response.Text, "1 hot leads")
}

func TestDigestSkipsTenantsWithoutAdmin(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t)

	_, err := f.store.UpdateTenant(ctx, &store.UpdateTenant{
		ID:                   f.tenant.ID,
		AdminChannelIdentity: new(string),
	})
	require.NoError(t, err)
	f.createLead(t, &store.Lead{ChannelIdentity: "a", Status: store.StatusHot})

	d := NewDigest(f.store, f.registry)
	require.NoError(t, d.Tick(ctx))
	assert.Empty(t, f.telegram.sent())
}

func TestRunnerStopsOnCancel(t *testing.T) {
	f := newWorkerFixture(t)
	r := NewRunner(NewGhost(f.store, f.registry))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a graceful stop")
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}
