package dialog

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/propflow/propflow/ai/oracle"
	"github.com/propflow/propflow/ai/retrieval"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/metrics"
	"github.com/propflow/propflow/plugin/webhook"
	"github.com/propflow/propflow/session"
	"github.com/propflow/propflow/store"
)

// handler processes one inbound message in one state and returns the
// outbound response. Handlers record lead mutations on the turn; Process
// persists them after the handler returns.
type handler func(ctx context.Context, t *turn) (*chat_apps.BotResponse, error)

// Machine is the nine-state qualification dialogue. A single Process call
// handles one turn under the per-lead lock.
type Machine struct {
	store     *store.Store
	sessions  session.Cache
	oracle    oracle.Oracle
	retrieval *retrieval.Retriever
	router    *Router
	locks     *LockManager
	handlers  map[store.LeadState]handler
	now       func() time.Time
}

func NewMachine(s *store.Store, sessions session.Cache, o oracle.Oracle, r *retrieval.Retriever) *Machine {
	m := &Machine{
		store:     s,
		sessions:  sessions,
		oracle:    o,
		retrieval: r,
		router:    NewRouter(s, sessions),
		locks:     NewLockManager(),
		now:       time.Now,
	}
	m.handlers = map[store.LeadState]handler{
		store.StateStart:            m.handleStart,
		store.StateLanguageSelected: m.handleLanguageSelected,
		store.StateWarmup:           m.handleContactCapture,
		store.StateCaptureContact:   m.handleContactCapture,
		store.StateSlotFilling:      m.handleSlotFilling,
		store.StateValueProposition: m.handleValueProposition,
		store.StateHardGate:         m.handleHardGate,
		store.StateEngagement:       m.handleEngagement,
		store.StateHandoffSchedule:  m.handleHandoffSchedule,
		store.StateCompleted:        m.handleCompleted,
	}
	return m
}

// Router exposes the machine's router for transports that pre-resolve
// tenants.
func (m *Machine) Router() *Router {
	return m.router
}

// Process handles one inbound message end to end: route, lock, load or
// create the lead, dispatch the state handler, persist, respond. Handlers
// never raise through this boundary; everything comes back as a BotResponse
// or a typed *Error.
func (m *Machine) Process(ctx context.Context, msg *chat_apps.Message) (*chat_apps.BotResponse, error) {
	traceID := shortuuid.New()
	log := slog.With("trace_id", traceID, "channel", msg.Channel, "channel_identity", msg.ChannelIdentity)

	routed, err := m.router.Route(ctx, msg)
	if err != nil {
		return nil, err
	}
	if msg.IsCommand("/set_admin") && routed.Tenant != nil {
		return m.setAdmin(ctx, routed.Tenant, msg)
	}
	if routed.Menu != nil {
		return routed.Menu, nil
	}
	if !routed.Routed {
		// Non-routable personal message: drop without creating a lead.
		log.Debug("dialog: unroutable message dropped")
		return nil, nil
	}
	tenant := routed.Tenant
	metrics.TurnsProcessed.WithLabelValues(string(msg.Channel)).Inc()

	release := m.locks.Acquire(tenant.ID, msg.ChannelIdentity)
	defer release()

	lead, created, err := m.loadOrCreateLead(ctx, tenant, msg)
	if err != nil {
		return nil, err
	}

	t := &turn{
		machine:  m,
		tenant:   tenant,
		lead:     lead,
		msg:      msg,
		vertical: routed.Vertical,
		now:      m.now(),
		log:      log.With("lead_id", lead.ID, "tenant_id", tenant.ID, "state", lead.State),
	}

	if msg.IsCommand("/start") && !created {
		t.reset()
	}

	m.assertStateIntegrity(t)

	h, ok := m.handlers[t.lead.State]
	if !ok {
		t.log.Error("dialog: no handler for state")
		h = m.handleStart
	}

	resp, err := h(ctx, t)
	if err != nil {
		if derr, ok := err.(*Error); ok && derr.Kind == KindFatal {
			return nil, derr
		}
		// Non-fatal handler errors degrade to a polite retry message.
		t.log.Error("dialog: handler error", "error", err)
		resp = &chat_apps.BotResponse{Text: T(t.lang(), "transient_retry")}
	}

	if err := m.finishTurn(ctx, t); err != nil {
		return nil, err
	}
	return resp, nil
}

// loadOrCreateLead fetches the lead for (tenant, channel identity), creating
// it on the first routed message.
func (m *Machine) loadOrCreateLead(ctx context.Context, tenant *store.Tenant, msg *chat_apps.Message) (*store.Lead, bool, error) {
	lead, err := m.store.GetLead(ctx, &store.FindLead{
		TenantID:        &tenant.ID,
		Channel:         &msg.Channel,
		ChannelIdentity: &msg.ChannelIdentity,
	})
	if err != nil {
		return nil, false, fatalf(err, "failed to load lead")
	}
	if lead != nil {
		return lead, false, nil
	}

	lead, err = m.store.CreateLead(ctx, &store.Lead{
		TenantID:        tenant.ID,
		Channel:         msg.Channel,
		ChannelIdentity: msg.ChannelIdentity,
		State:           store.StateStart,
		Status:          store.StatusNew,
		Language:        "",
	})
	if err != nil {
		return nil, false, fatalf(err, "failed to create lead")
	}
	return lead, true, nil
}

// assertStateIntegrity validates the state preconditions at the top of every
// turn. Violations are logged as integrity errors and recovered by stepping
// the lead back to the missing upstream slot; nothing is defaulted.
func (m *Machine) assertStateIntegrity(t *turn) {
	lead := t.lead

	switch lead.State {
	case store.StateValueProposition, store.StateEngagement, store.StateHandoffSchedule:
		if lead.Goal == "" || lead.TransactionType == "" {
			t.log.Error("dialog: integrity violation, qualified state without transaction type")
			t.setState(store.StateLanguageSelected)
			return
		}
		if lead.PropertyCategory == "" || !lead.HasBudget() {
			t.log.Error("dialog: integrity violation, qualified state with unfilled slots")
			t.setState(store.StateSlotFilling)
			t.setPendingSlot(nextSlot(lead))
			return
		}
	}

	switch lead.State {
	case store.StateEngagement, store.StateHandoffSchedule:
		if !lead.HasPhone() {
			t.log.Error("dialog: integrity violation, engagement without phone")
			t.setState(store.StateHardGate)
			return
		}
	}

	if lead.State == store.StateSlotFilling {
		if lead.PendingSlot == SlotBudget && lead.TransactionType == "" {
			t.log.Error("dialog: integrity violation, budget pending without transaction type",
				"error", integrityf(lead.ID, "budget asked without transaction type"))
			t.setPendingSlot(slotTransactionType)
		}
		if lead.PendingSlot == SlotPropertyType && lead.PropertyCategory == "" {
			t.log.Error("dialog: integrity violation, property type pending without category",
				"error", integrityf(lead.ID, "property type asked without category"))
			t.setPendingSlot(SlotCategory)
		}
	}
}

// setAdmin registers the sender's chat as the tenant's alert destination.
func (m *Machine) setAdmin(ctx context.Context, tenant *store.Tenant, msg *chat_apps.Message) (*chat_apps.BotResponse, error) {
	lang := tenant.DefaultLanguage
	if !isSupportedLanguage(lang) {
		lang = "en"
	}
	_, err := m.store.UpdateTenant(ctx, &store.UpdateTenant{
		ID:                   tenant.ID,
		AdminChannel:         &msg.Channel,
		AdminChannelIdentity: &msg.ChannelIdentity,
	})
	if err != nil {
		slog.Error("dialog: failed to set admin channel", "tenant_id", tenant.ID, "error", err)
		return &chat_apps.BotResponse{Text: T(lang, "set_admin_failed")}, nil
	}
	slog.Info("dialog: admin channel registered", "tenant_id", tenant.ID, "channel", msg.Channel)
	return &chat_apps.BotResponse{Text: T(lang, "admin_set")}, nil
}

// finishTurn applies the engagement bookkeeping every inbound turn gets:
// message counters, last interaction, recomputed score and temperature, then
// one persisted update.
func (m *Machine) finishTurn(ctx context.Context, t *turn) error {
	lead := t.lead

	messages := lead.MessagesCount + 1
	lead.MessagesCount = messages
	t.update.MessagesCount = &messages

	if t.msg.Media == chat_apps.MediaVoice {
		voice := lead.VoiceMessagesCount + 1
		lead.VoiceMessagesCount = voice
		t.update.VoiceMessagesCount = &voice
	}

	lead.LastInteraction = t.now
	t.update.LastInteraction = &t.now

	score := Score(lead, t.now)
	temp := TemperatureFor(score)
	lead.LeadScore = score
	lead.Temperature = temp
	t.update.LeadScore = &score
	t.update.Temperature = &temp

	t.update.ID = lead.ID
	t.update.TenantID = lead.TenantID
	if _, err := m.store.UpdateLead(ctx, &t.update); err != nil {
		return fatalf(err, "failed to persist lead %d", lead.ID)
	}

	// Status transitions fan out to the tenant's CRM, fire and forget.
	if t.update.Status != nil && t.tenant.CRMWebhookURL != "" {
		webhook.PostAsync(webhook.NewLeadEvent(
			t.tenant.CRMWebhookURL, "lead."+string(*t.update.Status), lead))
	}
	return nil
}
