package dialog

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/ai/oracle"
	"github.com/propflow/propflow/ai/retrieval"
	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/session"
	"github.com/propflow/propflow/store"
	"github.com/propflow/propflow/store/storetest"
)

type stubOracle struct {
	fn func(*oracle.Request) (*oracle.Result, error)
}

func (s stubOracle) Extract(_ context.Context, req *oracle.Request) (*oracle.Result, error) {
	if s.fn == nil {
		return nil, oracle.ErrUnavailable
	}
	return s.fn(req)
}

type fixture struct {
	machine *Machine
	store   *store.Store
	tenant  *store.Tenant
}

func newFixture(t *testing.T, o oracle.Oracle) *fixture {
	t.Helper()
	s := store.New(storetest.New(), &profile.Profile{})
	t.Cleanup(func() { _ = s.Close() })

	tenant, err := s.CreateTenant(context.Background(), &store.Tenant{
		Name:                 "Marina Realty",
		DefaultLanguage:      "en",
		AdminChannel:         store.ChannelTelegram,
		AdminChannelIdentity: "admin-chat",
		SubscriptionActive:   true,
		Verticals: []store.Vertical{
			{Name: "realty", Keywords: []string{"property"}},
			{Name: "support"},
		},
	})
	require.NoError(t, err)

	m := NewMachine(s, session.NewMemoryCache(time.Hour), o, retrieval.New(s))
	return &fixture{machine: m, store: s, tenant: tenant}
}

func (f *fixture) telegram(text, button string) *chat_apps.Message {
	return &chat_apps.Message{
		TenantID:        f.tenant.ID,
		Channel:         store.ChannelTelegram,
		ChannelIdentity: "900",
		Text:            text,
		Button:          button,
	}
}

func (f *fixture) lead(t *testing.T) *store.Lead {
	t.Helper()
	identity := "900"
	lead, err := f.store.GetLead(context.Background(), &store.FindLead{
		TenantID:        &f.tenant.ID,
		ChannelIdentity: &identity,
	})
	require.NoError(t, err)
	require.NotNil(t, lead)
	return lead
}

func TestInvestmentFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})

	for _, p := range []*store.Property{
		{TenantID: 1, Title: "Marina Heights 2BR", Price: 420_000, Bedrooms: 2, Location: "Dubai Marina", PropertyType: "apartment", PropertyCategory: store.CategoryResidential, IsAvailable: true},
		{TenantID: 1, Title: "JVC Studio", Price: 350_000, Bedrooms: 1, Location: "JVC", PropertyType: "apartment", PropertyCategory: store.CategoryResidential, IsAvailable: true, IsFeatured: true},
	} {
		_, err := f.store.CreateProperty(ctx, p)
		require.NoError(t, err)
	}

	// /start greets with language buttons.
	resp, err := f.machine.Process(ctx, f.telegram("/start", ""))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Len(t, resp.Buttons, 4)
	assert.Equal(t, "lang_en", resp.Buttons[0].Payload)

	// Language pick shows the goal buttons.
	resp, err = f.machine.Process(ctx, f.telegram("", "lang_fa"))
	require.NoError(t, err)
	require.Len(t, resp.Buttons, 4)
	assert.Equal(t, "goal_investment", resp.Buttons[0].Payload)
	assert.Equal(t, "fa", f.lead(t).Language)

	// Goal pick requests contact.
	resp, err = f.machine.Process(ctx, f.telegram("", "goal_investment"))
	require.NoError(t, err)
	assert.True(t, resp.RequestContact)
	lead := f.lead(t)
	assert.Equal(t, store.StateWarmup, lead.State)
	assert.Equal(t, store.GoalInvestment, lead.Goal)
	assert.Equal(t, store.TransactionBuy, lead.TransactionType)

	// Contact share triggers the admin alert and the category question.
	msg := f.telegram("", "")
	msg.Contact = &chat_apps.Contact{Name: "Omid", Phone: "+971501234567"}
	resp, err = f.machine.Process(ctx, msg)
	require.NoError(t, err)
	require.NotNil(t, resp.AdminAlert)
	assert.Equal(t, "admin-chat", resp.AdminAlert.ChannelIdentity)
	assert.Contains(t, resp.AdminAlert.Text, "+971501234567")
	assert.Contains(t, resp.AdminAlert.Text, "investment")
	require.Len(t, resp.Buttons, 2)
	assert.Equal(t, "category_residential", resp.Buttons[0].Payload)

	// Category -> budget bands.
	resp, err = f.machine.Process(ctx, f.telegram("", "category_residential"))
	require.NoError(t, err)
	require.Len(t, resp.Buttons, 5)
	assert.Equal(t, "budget_0", resp.Buttons[0].Payload)

	// Budget band 2 (300k-500k) -> property type.
	resp, err = f.machine.Process(ctx, f.telegram("", "budget_2"))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Buttons)
	assert.Equal(t, "prop_apartment", resp.Buttons[0].Payload)

	// Property type completes qualification: matched cards with scarcity.
	resp, err = f.machine.Process(ctx, f.telegram("", "prop_apartment"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Marina Heights 2BR")
	assert.Contains(t, resp.Text, "JVC Studio")
	assert.Contains(t, resp.Text, "واحد", "scarcity line is localised to Persian")

	lead = f.lead(t)
	assert.Equal(t, store.StateValueProposition, lead.State)
	assert.Equal(t, store.StatusQualified, lead.Status)
	assert.ElementsMatch(t, []string{SlotGoal, SlotCategory, SlotBudget, SlotPropertyType}, lead.FilledSlots)
	assert.Equal(t, 1, lead.FomoMessagesSent)
	assert.Equal(t, 1, lead.UrgencyScore)
}

func TestAdminAlertEmittedOncePerPhoneCapture(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})

	_, err := f.machine.Process(ctx, f.telegram("/start", ""))
	require.NoError(t, err)
	_, err = f.machine.Process(ctx, f.telegram("", "lang_en"))
	require.NoError(t, err)
	_, err = f.machine.Process(ctx, f.telegram("", "goal_living"))
	require.NoError(t, err)

	msg := f.telegram("", "")
	msg.Contact = &chat_apps.Contact{Phone: "+971501234567"}
	resp, err := f.machine.Process(ctx, msg)
	require.NoError(t, err)
	require.NotNil(t, resp.AdminAlert)

	// Re-sharing the same contact later must not alert again.
	lead := f.lead(t)
	st := store.StateHardGate
	_, err = f.store.UpdateLead(ctx, &store.UpdateLead{ID: lead.ID, TenantID: lead.TenantID, State: &st})
	require.NoError(t, err)

	resp, err = f.machine.Process(ctx, msg)
	require.NoError(t, err)
	assert.Nil(t, resp.AdminAlert)
}

func TestFAQDuringSlotFilling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{fn: func(req *oracle.Request) (*oracle.Result, error) {
		return &oracle.Result{
			FreeText:   "Your funds are protected by RERA escrow accounts.",
			Slots:      map[string]string{},
			Confidence: 1,
		}, nil
	}})

	lead := f.seedSlotFillingLead(t, store.TransactionBuy, SlotBudget)

	resp, err := f.machine.Process(ctx, f.telegram("Is my money safe?", ""))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Text, "Your funds are protected"))
	assert.Contains(t, resp.Text, T("en", "ask_budget_buy"))
	assert.Len(t, resp.Buttons, 5, "budget buttons stay intact")

	after := f.lead(t)
	assert.Equal(t, store.StateSlotFilling, after.State)
	assert.Equal(t, SlotBudget, after.PendingSlot)
	assert.Equal(t, lead.BudgetMax, after.BudgetMax, "budget untouched")
}

func TestBudgetIntegrityRecovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})

	// Crafted state: budget pending but transaction_type never captured.
	f.seedSlotFillingLead(t, "", SlotBudget)

	resp, err := f.machine.Process(ctx, f.telegram("", "budget_2"))
	require.NoError(t, err)
	assert.Equal(t, T("en", "ask_buy_or_rent"), resp.Text)
	require.Len(t, resp.Buttons, 2)
	assert.Equal(t, "txn_buy", resp.Buttons[0].Payload)

	after := f.lead(t)
	assert.Equal(t, store.StateSlotFilling, after.State)
	assert.Zero(t, after.BudgetMax, "no silent default")
}

func TestZombieInputDuringSlotFilling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})
	f.seedSlotFillingLead(t, store.TransactionBuy, SlotBudget)

	msg := f.telegram("", "")
	msg.Media = chat_apps.MediaPhoto
	resp, err := f.machine.Process(ctx, msg)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, T("en", "zombie_ack"))
	assert.Len(t, resp.Buttons, 5)
	assert.Equal(t, SlotBudget, f.lead(t).PendingSlot)
}

func TestDeterministicBudgetParse(t *testing.T) {
	ctx := context.Background()
	// Oracle must not be consulted when the parser matches.
	f := newFixture(t, stubOracle{fn: func(*oracle.Request) (*oracle.Result, error) {
		t.Fatal("oracle called for a deterministic parse")
		return nil, nil
	}})
	f.seedSlotFillingLead(t, store.TransactionBuy, SlotBudget)

	resp, err := f.machine.Process(ctx, f.telegram("around 400k", ""))
	require.NoError(t, err)
	require.NotNil(t, resp)

	after := f.lead(t)
	assert.Equal(t, int64(300_000), after.BudgetMin)
	assert.Equal(t, int64(500_000), after.BudgetMax)
}

func TestLanguageSwitchDoesNotRegressState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{fn: func(*oracle.Request) (*oracle.Result, error) {
		return &oracle.Result{Lang: "ru", Slots: map[string]string{}}, nil
	}})
	f.seedSlotFillingLead(t, store.TransactionBuy, SlotBudget)

	resp, err := f.machine.Process(ctx, f.telegram("сколько это стоит", ""))
	require.NoError(t, err)
	assert.Equal(t, T("ru", "ask_budget_buy"), resp.Text)

	after := f.lead(t)
	assert.Equal(t, "ru", after.Language)
	assert.Equal(t, store.StateSlotFilling, after.State)
}

func TestOracleFailureDegradesToButtons(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{}) // always ErrUnavailable
	f.seedSlotFillingLead(t, store.TransactionBuy, SlotBudget)

	resp, err := f.machine.Process(ctx, f.telegram("some rambling text", ""))
	require.NoError(t, err)
	assert.Equal(t, T("en", "ask_budget_buy"), resp.Text)
	assert.Len(t, resp.Buttons, 5)
	assert.Equal(t, store.StateSlotFilling, f.lead(t).State)
}

func TestViewingBookingFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})

	slot, err := f.store.CreateScheduleSlot(ctx, &store.ScheduleSlot{
		TenantID: f.tenant.ID, DayOfWeek: 2, StartTime: "10:00", EndTime: "11:00",
	})
	require.NoError(t, err)

	f.seedEngagedLead(t)

	resp, err := f.machine.Process(ctx, f.telegram("", payloadBookViewing))
	require.NoError(t, err)
	require.Len(t, resp.Buttons, 1)
	assert.Equal(t, "slot_"+itoa(slot.ID), resp.Buttons[0].Payload)
	assert.Equal(t, store.StateHandoffSchedule, f.lead(t).State)

	resp, err = f.machine.Process(ctx, f.telegram("", resp.Buttons[0].Payload))
	require.NoError(t, err)
	assert.Equal(t, T("en", "slot_booked"), resp.Text)

	after := f.lead(t)
	assert.Equal(t, store.StateCompleted, after.State)
	assert.Equal(t, store.StatusViewingScheduled, after.Status)

	appts, err := f.store.ListAppointments(ctx, &store.FindAppointment{TenantID: &f.tenant.ID})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, slot.ID, appts[0].SlotID)
}

func TestDoubleBookingReoffers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})

	slot, err := f.store.CreateScheduleSlot(ctx, &store.ScheduleSlot{
		TenantID: f.tenant.ID, DayOfWeek: 2, StartTime: "10:00", EndTime: "11:00",
	})
	require.NoError(t, err)
	free, err := f.store.CreateScheduleSlot(ctx, &store.ScheduleSlot{
		TenantID: f.tenant.ID, DayOfWeek: 3, StartTime: "14:00", EndTime: "15:00",
	})
	require.NoError(t, err)

	f.seedEngagedLead(t)
	_, err = f.store.BookScheduleSlot(ctx, f.tenant.ID, slot.ID, 999)
	require.NoError(t, err)

	lead := f.lead(t)
	st := store.StateHandoffSchedule
	_, err = f.store.UpdateLead(ctx, &store.UpdateLead{ID: lead.ID, TenantID: lead.TenantID, State: &st})
	require.NoError(t, err)

	resp, err := f.machine.Process(ctx, f.telegram("", "slot_"+itoa(slot.ID)))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, T("en", "slot_taken"))
	require.Len(t, resp.Buttons, 1)
	assert.Equal(t, "slot_"+itoa(free.ID), resp.Buttons[0].Payload)
	assert.Equal(t, store.StateHandoffSchedule, f.lead(t).State)
}

func TestSetAdminCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})

	resp, err := f.machine.Process(ctx, f.telegram("/set_admin", ""))
	require.NoError(t, err)
	assert.Equal(t, T("en", "admin_set"), resp.Text)

	tenant, err := f.store.GetTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "900", tenant.AdminChannelIdentity)
}

func TestStartResetsQualification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubOracle{})
	f.seedEngagedLead(t)

	resp, err := f.machine.Process(ctx, f.telegram("/start", ""))
	require.NoError(t, err)
	assert.Len(t, resp.Buttons, 4, "back to language selection")

	after := f.lead(t)
	assert.Equal(t, store.StateStart, after.State)
	assert.Empty(t, after.FilledSlots)
	assert.Zero(t, after.BudgetMax)
	assert.Equal(t, "+971501234567", after.Phone, "phone survives a reset")
}

// --- helpers ---

func (f *fixture) seedSlotFillingLead(t *testing.T, txn store.TransactionType, pending string) *store.Lead {
	t.Helper()
	lead := &store.Lead{
		TenantID:        f.tenant.ID,
		Channel:         store.ChannelTelegram,
		ChannelIdentity: "900",
		Language:        "en",
		Phone:           "+971501234567",
		State:           store.StateSlotFilling,
		PendingSlot:     pending,
		Status:          store.StatusNew,
		LastInteraction: time.Now(),
	}
	if txn != "" {
		lead.Goal = store.GoalInvestment
		lead.TransactionType = txn
		lead.PropertyCategory = store.CategoryResidential
		lead.FilledSlots = []string{SlotGoal, SlotCategory}
	}
	created, err := f.store.CreateLead(context.Background(), lead)
	require.NoError(t, err)

	// The router needs a remembered mapping for button-only messages.
	require.NoError(t, f.machine.sessions.SetRoute(context.Background(), "900", &session.Route{
		TenantID: f.tenant.ID,
		Vertical: "realty",
	}))
	return created
}

func (f *fixture) seedEngagedLead(t *testing.T) *store.Lead {
	t.Helper()
	lead := &store.Lead{
		TenantID:         f.tenant.ID,
		Channel:          store.ChannelTelegram,
		ChannelIdentity:  "900",
		Language:         "en",
		Phone:            "+971501234567",
		Goal:             store.GoalInvestment,
		TransactionType:  store.TransactionBuy,
		PropertyCategory: store.CategoryResidential,
		PropertyType:     "apartment",
		BudgetMin:        300_000,
		BudgetMax:        500_000,
		FilledSlots:      []string{SlotGoal, SlotCategory, SlotBudget, SlotPropertyType},
		State:            store.StateEngagement,
		Status:           store.StatusQualified,
		LastInteraction:  time.Now(),
	}
	created, err := f.store.CreateLead(context.Background(), lead)
	require.NoError(t, err)

	require.NoError(t, f.machine.sessions.SetRoute(context.Background(), "900", &session.Route{
		TenantID: f.tenant.ID,
		Vertical: "realty",
	}))
	return created
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
