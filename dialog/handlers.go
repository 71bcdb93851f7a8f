package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/propflow/propflow/ai/oracle"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/metrics"
	"github.com/propflow/propflow/store"
)

const (
	maxPropertyCards = 5
	maxOfferedSlots  = 4

	payloadBookViewing = "book_viewing"
)

// handleStart greets and prompts for a language; the language pick moves the
// lead to LANGUAGE_SELECTED and shows the goal buttons.
func (m *Machine) handleStart(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	if lang, ok := strings.CutPrefix(t.msg.Button, "lang_"); ok && isSupportedLanguage(lang) {
		t.setLanguage(lang)
		t.setState(store.StateLanguageSelected)
		return askGoal(t), nil
	}
	return askLanguage(t), nil
}

// handleLanguageSelected waits for a goal. Free text goes through the oracle
// so a question ("what areas do you cover?") gets answered before the goal
// buttons are shown again.
func (m *Machine) handleLanguageSelected(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	if goal, ok := strings.CutPrefix(t.msg.Button, "goal_"); ok {
		switch store.Goal(goal) {
		case store.GoalInvestment, store.GoalLiving, store.GoalResidency, store.GoalRent:
			t.setGoal(store.Goal(goal))
			t.setState(store.StateWarmup)
			return askContact(t), nil
		}
	}
	if t.msg.Text != "" && t.msg.Button == "" {
		if answer := m.oracleAnswer(ctx, t); answer != "" {
			resp := askGoal(t)
			resp.Text = answer + "\n\n" + resp.Text
			return resp, nil
		}
	}
	return askGoal(t), nil
}

// handleContactCapture serves WARMUP and CAPTURE_CONTACT: validate the
// contact, emit the admin alert on first capture, then start slot filling.
func (m *Machine) handleContactCapture(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	name, phone, ok := extractContact(t.msg)
	if !ok {
		t.setState(store.StateCaptureContact)
		resp := &chat_apps.BotResponse{
			Text:           T(t.lang(), "invalid_phone"),
			RequestContact: true,
			Metadata:       map[string]string{"contact_button": T(t.lang(), "share_contact")},
		}
		if t.msg.Text == "" && t.msg.Contact == nil {
			resp.Text = T(t.lang(), "ask_contact")
		}
		return resp, nil
	}

	alert := m.captureContact(t, name, phone)
	t.setState(store.StateSlotFilling)
	t.setPendingSlot(nextSlot(t.lead))

	resp := askPending(t)
	resp.AdminAlert = alert
	return resp, nil
}

// handleSlotFilling fills the pending slot from a button, a deterministic
// parse, or the oracle, and asks the next one. FAQ answers from the oracle
// are emitted with the pending question re-asked, buttons intact.
func (m *Machine) handleSlotFilling(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	if t.lead.PendingSlot == "" {
		t.setPendingSlot(nextSlot(t.lead))
	}
	if t.lead.PendingSlot == "" {
		return m.enterValueProposition(ctx, t)
	}

	// Zombie input: media while a button prompt is pending.
	if t.msg.Media != chat_apps.MediaNone && t.msg.Text == "" && t.msg.Button == "" {
		resp := askPending(t)
		resp.Text = T(t.lang(), "zombie_ack") + "\n\n" + resp.Text
		return resp, nil
	}

	if t.msg.Button != "" {
		filled, err := m.applySlotButton(t, t.msg.Button)
		if err != nil {
			return nil, err
		}
		if filled {
			return m.advanceSlots(ctx, t)
		}
		return askPending(t), nil
	}

	if filled := m.applyDeterministic(t, t.msg.Text); filled {
		return m.advanceSlots(ctx, t)
	}

	return m.consultOracle(ctx, t)
}

// handleValueProposition: the qualifying slots are full. Scheduling intent
// moves to the handoff; anything else flows into engagement (or the hard
// gate when the phone is still missing).
func (m *Machine) handleValueProposition(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	if !t.lead.HasPhone() {
		t.setState(store.StateHardGate)
		return m.askHardGate(ctx, t), nil
	}
	if hasScheduleIntent(t.msg) {
		return m.enterSchedule(ctx, t)
	}
	t.setState(store.StateEngagement)
	return m.handleEngagement(ctx, t)
}

// handleHardGate requests the phone with a trust snippet; success unlocks
// engagement.
func (m *Machine) handleHardGate(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	name, phone, ok := extractContact(t.msg)
	if !ok {
		return m.askHardGate(ctx, t), nil
	}
	alert := m.captureContact(t, name, phone)
	t.setState(store.StateEngagement)

	resp := &chat_apps.BotResponse{
		Text:    T(t.lang(), "engagement_fallback"),
		Buttons: []chat_apps.Button{{Label: T(t.lang(), "book_viewing"), Payload: payloadBookViewing}},
	}
	resp.AdminAlert = alert
	return resp, nil
}

// handleEngagement is free conversation over the oracle with inventory
// context. Scheduling intent hands off to the slot offer.
func (m *Machine) handleEngagement(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	if hasScheduleIntent(t.msg) {
		return m.enterSchedule(ctx, t)
	}

	fallback := &chat_apps.BotResponse{
		Text:    T(t.lang(), "engagement_fallback"),
		Buttons: []chat_apps.Button{{Label: T(t.lang(), "book_viewing"), Payload: payloadBookViewing}},
	}
	if t.msg.Text == "" {
		return fallback, nil
	}

	answer := m.oracleAnswer(ctx, t)
	if answer == "" {
		return fallback, nil
	}
	return &chat_apps.BotResponse{
		Text:    answer,
		Buttons: fallback.Buttons,
	}, nil
}

// handleHandoffSchedule books the picked slot or re-offers the remaining
// ones. Booking is atomic in the store; a lost race re-offers.
func (m *Machine) handleHandoffSchedule(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	slotID, ok := parseSlotPayload(t.msg.Button)
	if !ok {
		return m.offerSlots(ctx, t, "offer_slots")
	}

	_, err := m.store.BookScheduleSlot(ctx, t.tenant.ID, slotID, t.lead.ID)
	if err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			return m.offerSlots(ctx, t, "slot_taken")
		}
		return nil, fatalf(err, "failed to book slot %d", slotID)
	}

	t.setState(store.StateCompleted)
	t.setStatus(store.StatusViewingScheduled)
	t.log.Info("dialog: viewing booked", "slot_id", slotID)
	return &chat_apps.BotResponse{Text: T(t.lang(), "slot_booked")}, nil
}

// handleCompleted is terminal: no automated messages. Workers may re-engage;
// /start resets before dispatch.
func (m *Machine) handleCompleted(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	return nil, nil
}

// --- prompts ---

func askLanguage(t *turn) *chat_apps.BotResponse {
	resp := &chat_apps.BotResponse{Text: T(t.lang(), "greeting")}
	for _, b := range languageButtons {
		resp.Buttons = append(resp.Buttons, chat_apps.Button{Label: b.Label, Payload: b.Payload})
	}
	return resp
}

func askGoal(t *turn) *chat_apps.BotResponse {
	lang := t.lang()
	return &chat_apps.BotResponse{
		Text: T(lang, "ask_goal"),
		Buttons: []chat_apps.Button{
			{Label: T(lang, "goal_investment"), Payload: "goal_investment"},
			{Label: T(lang, "goal_living"), Payload: "goal_living"},
			{Label: T(lang, "goal_residency"), Payload: "goal_residency"},
			{Label: T(lang, "goal_rent"), Payload: "goal_rent"},
		},
	}
}

func askContact(t *turn) *chat_apps.BotResponse {
	return &chat_apps.BotResponse{
		Text:           T(t.lang(), "ask_contact"),
		RequestContact: true,
		Metadata:       map[string]string{"contact_button": T(t.lang(), "share_contact")},
	}
}

// askPending renders the question and buttons for the pending slot.
func askPending(t *turn) *chat_apps.BotResponse {
	lang := t.lang()
	switch t.lead.PendingSlot {
	case slotTransactionType:
		return &chat_apps.BotResponse{
			Text: T(lang, "ask_buy_or_rent"),
			Buttons: []chat_apps.Button{
				{Label: T(lang, "buy"), Payload: "txn_buy"},
				{Label: T(lang, "rent"), Payload: "txn_rent"},
			},
		}
	case SlotCategory:
		return &chat_apps.BotResponse{
			Text: T(lang, "ask_category"),
			Buttons: []chat_apps.Button{
				{Label: T(lang, "category_residential"), Payload: "category_residential"},
				{Label: T(lang, "category_commercial"), Payload: "category_commercial"},
			},
		}
	case SlotBudget:
		key := "ask_budget_buy"
		if t.lead.TransactionType == store.TransactionRent {
			key = "ask_budget_rent"
		}
		resp := &chat_apps.BotResponse{Text: T(lang, key)}
		for _, b := range BandsFor(t.lead.TransactionType) {
			resp.Buttons = append(resp.Buttons, chat_apps.Button{
				Label:   b.Label(),
				Payload: "budget_" + strconv.Itoa(b.Index),
			})
		}
		return resp
	case SlotPropertyType:
		resp := &chat_apps.BotResponse{Text: T(lang, "ask_property_type")}
		for _, pt := range propertyTypeButtons[string(t.lead.PropertyCategory)] {
			resp.Buttons = append(resp.Buttons, chat_apps.Button{
				Label:   propertyTypeLabel(lang, pt),
				Payload: "prop_" + pt,
			})
		}
		return resp
	default:
		return askGoal(t)
	}
}

// --- slot application ---

// applySlotButton applies a button payload to the pending slot. Unknown
// payloads are a validation error recovered by re-asking.
func (m *Machine) applySlotButton(t *turn, payload string) (bool, error) {
	switch {
	case payload == "txn_buy":
		t.setTransactionType(store.TransactionBuy)
		t.setPendingSlot(nextSlot(t.lead))
		return true, nil
	case payload == "txn_rent":
		t.setTransactionType(store.TransactionRent)
		t.setPendingSlot(nextSlot(t.lead))
		return true, nil
	case payload == "category_residential":
		t.setCategory(store.CategoryResidential)
		return true, nil
	case payload == "category_commercial":
		t.setCategory(store.CategoryCommercial)
		return true, nil
	case strings.HasPrefix(payload, "budget_"):
		if t.lead.TransactionType == "" {
			// Budget without a transaction type is never defaulted.
			t.log.Error("dialog: integrity violation, budget button without transaction type",
				"error", integrityf(t.lead.ID, "budget fill without transaction type"))
			t.setPendingSlot(slotTransactionType)
			return false, nil
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(payload, "budget_"))
		if err != nil {
			t.log.Warn("dialog: malformed budget payload", "payload", payload)
			return false, nil
		}
		band, ok := BandByIndex(t.lead.TransactionType, idx)
		if !ok {
			return false, nil
		}
		t.setBudget(band)
		return true, nil
	case strings.HasPrefix(payload, "prop_"):
		if t.lead.PropertyCategory == "" {
			t.log.Error("dialog: integrity violation, property type button without category",
				"error", integrityf(t.lead.ID, "property type fill without category"))
			t.setPendingSlot(SlotCategory)
			return false, nil
		}
		t.setPropertyType(strings.TrimPrefix(payload, "prop_"))
		return true, nil
	default:
		t.log.Warn("dialog: unknown button payload", "payload", payload)
		return false, nil
	}
}

// applyDeterministic tries the cheap parsers before the oracle.
func (m *Machine) applyDeterministic(t *turn, text string) bool {
	if text == "" {
		return false
	}
	switch t.lead.PendingSlot {
	case SlotBudget:
		if t.lead.TransactionType == "" {
			return false
		}
		if amount, ok := ParseAmount(text); ok {
			if band, ok := BandForAmount(t.lead.TransactionType, amount); ok {
				t.setBudget(band)
				return true
			}
		}
	case SlotCategory:
		if cat, ok := parseCategory(text); ok {
			t.setCategory(cat)
			return true
		}
	case SlotPropertyType:
		if pt, ok := parsePropertyType(text); ok {
			t.setPropertyType(pt)
			return true
		}
	}
	return false
}

// consultOracle extracts slots from free text or answers an FAQ. The pending
// question is always re-asked after an answer; oracle failure degrades to
// the buttons.
func (m *Machine) consultOracle(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	result, err := m.extract(ctx, t)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("degraded").Inc()
		t.log.Warn("dialog: oracle unavailable, degrading to buttons", "error", err)
		return askPending(t), nil
	}
	metrics.OracleCalls.WithLabelValues("ok").Inc()

	// Language switch: re-render, never regress state.
	if result.Lang != "" && result.Lang != t.lead.Language {
		t.log.Info("dialog: language switch", "from", t.lead.Language, "to", result.Lang)
		t.setLanguage(result.Lang)
	}

	if value, ok := result.Slots[t.lead.PendingSlot]; ok && result.Confidence >= 0.6 {
		if m.applyDeterministic(t, value) {
			return m.advanceSlots(ctx, t)
		}
	}

	if result.FreeText != "" {
		resp := askPending(t)
		resp.Text = result.FreeText + "\n\n" + resp.Text
		return resp, nil
	}

	return askPending(t), nil
}

// advanceSlots asks the next unfilled slot or enters the value proposition.
func (m *Machine) advanceSlots(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	next := nextSlot(t.lead)
	if next != "" {
		t.setPendingSlot(next)
		return askPending(t), nil
	}
	t.setPendingSlot("")
	return m.enterValueProposition(ctx, t)
}

// enterValueProposition renders up to five matched properties with scarcity
// annotation and an educational snippet, then parks the lead in
// VALUE_PROPOSITION (or the hard gate when the phone is missing).
func (m *Machine) enterValueProposition(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	lead := t.lead
	if lead.Goal == "" || lead.TransactionType == "" || lead.PropertyCategory == "" || !lead.HasBudget() {
		return nil, integrityf(lead.ID, "value proposition without full qualification")
	}

	t.setState(store.StateValueProposition)
	if lead.Status == store.StatusNew {
		t.setStatus(store.StatusQualified)
	}

	limit := maxPropertyCards
	find := &store.FindProperty{
		TenantID:         &t.tenant.ID,
		PropertyCategory: &lead.PropertyCategory,
		PriceMin:         &lead.BudgetMin,
		OnlyAvailable:    true,
		Limit:            &limit,
	}
	if lead.BudgetMax > 0 {
		find.PriceMax = &lead.BudgetMax
	}
	if lead.PropertyType != "" {
		find.PropertyType = &lead.PropertyType
	}
	properties, err := m.store.ListProperties(ctx, find)
	if err != nil {
		return nil, fatalf(err, "failed to match properties for lead %d", lead.ID)
	}

	lang := t.lang()
	if len(properties) == 0 {
		t.bumpUrgency(2)
		return &chat_apps.BotResponse{Text: T(lang, "hot_market")}, nil
	}

	var b strings.Builder
	b.WriteString(T(lang, "value_prop_intro"))
	for _, p := range properties {
		b.WriteString("\n\n")
		b.WriteString(PropertyCard(p, lang, t.now))
	}

	if snippet, err := m.retrieval.EducationSnippet(ctx, t.tenant.ID, lang, lead.Goal); err != nil {
		t.log.Warn("dialog: education snippet lookup failed", "error", err)
	} else if snippet != nil {
		b.WriteString("\n\n")
		b.WriteString(snippet.Content)
	}

	t.bumpUrgency(1)
	return &chat_apps.BotResponse{
		Text:    b.String(),
		Buttons: []chat_apps.Button{{Label: T(lang, "book_viewing"), Payload: payloadBookViewing}},
	}, nil
}

// askHardGate renders the phone request with a trust snippet.
func (m *Machine) askHardGate(ctx context.Context, t *turn) *chat_apps.BotResponse {
	lang := t.lang()
	text := T(lang, "hard_gate")
	if snippet, err := m.retrieval.TrustSnippet(ctx, t.tenant.ID, lang); err != nil {
		t.log.Warn("dialog: trust snippet lookup failed", "error", err)
	} else if snippet != nil {
		text += "\n\n" + snippet.Content
	}
	return &chat_apps.BotResponse{
		Text:           text,
		RequestContact: true,
		Metadata:       map[string]string{"contact_button": T(t.lang(), "share_contact")},
	}
}

// enterSchedule offers up to four free slots and moves to HANDOFF_SCHEDULE.
func (m *Machine) enterSchedule(ctx context.Context, t *turn) (*chat_apps.BotResponse, error) {
	resp, err := m.offerSlots(ctx, t, "offer_slots")
	if err != nil {
		return nil, err
	}
	if len(resp.Buttons) > 0 {
		t.setState(store.StateHandoffSchedule)
	}
	return resp, nil
}

func (m *Machine) offerSlots(ctx context.Context, t *turn, introKey string) (*chat_apps.BotResponse, error) {
	limit := maxOfferedSlots
	slots, err := m.store.ListScheduleSlots(ctx, &store.FindScheduleSlot{
		TenantID: &t.tenant.ID,
		OnlyFree: true,
		Limit:    &limit,
	})
	if err != nil {
		return nil, fatalf(err, "failed to list schedule slots")
	}

	lang := t.lang()
	if len(slots) == 0 {
		return &chat_apps.BotResponse{Text: T(lang, "no_slots")}, nil
	}
	resp := &chat_apps.BotResponse{Text: T(lang, introKey)}
	for _, s := range slots {
		resp.Buttons = append(resp.Buttons, chat_apps.Button{
			Label:   slotLabel(s, lang),
			Payload: fmt.Sprintf("slot_%d", s.ID),
		})
	}
	return resp, nil
}

// --- helpers ---

// captureContact stores the validated phone and returns the admin alert on
// the first capture. A missing admin skips the alert with a warning; the
// user flow continues.
func (m *Machine) captureContact(t *turn, name, phone string) *chat_apps.AdminAlert {
	first := !t.lead.HasPhone()
	t.setPhone(phone)
	if name != "" && t.lead.Name == "" {
		t.setName(name)
	}
	if !first {
		return nil
	}

	if !t.tenant.HasAdmin() {
		t.log.Warn("dialog: admin channel not configured, skipping hot-lead alert",
			"error", &Error{Kind: KindConfiguration, LeadID: t.lead.ID, Message: "tenant has no admin channel"})
		return nil
	}

	displayName := t.lead.Name
	if displayName == "" {
		displayName = t.msg.ChannelIdentity
	}
	metrics.AdminAlerts.Inc()
	return &chat_apps.AdminAlert{
		ChannelIdentity: t.tenant.AdminChannelIdentity,
		Text: fmt.Sprintf("🔥 Hot lead: %s, %s, goal: %s, at %s",
			displayName, phone, t.lead.Goal, t.now.Format("2006-01-02 15:04")),
	}
}

// extract calls the oracle with the full slot schema and tenant knowledge.
func (m *Machine) extract(ctx context.Context, t *turn) (*oracle.Result, error) {
	snippets, err := m.retrieval.Snippets(ctx, t.tenant.ID, t.lang(), t.msg.Text, 0)
	if err != nil {
		t.log.Warn("dialog: snippet retrieval failed", "error", err)
		snippets = nil
	}
	return m.oracle.Extract(ctx, &oracle.Request{
		Utterance: t.msg.Text,
		LangHint:  t.lang(),
		Slots:     slotSchema(t.lead),
		Snippets:  snippets,
	})
}

// oracleAnswer returns the oracle's free-text answer for conversational
// states, or "" when unavailable.
func (m *Machine) oracleAnswer(ctx context.Context, t *turn) string {
	result, err := m.extract(ctx, t)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("degraded").Inc()
		t.log.Warn("dialog: oracle unavailable", "error", err)
		return ""
	}
	metrics.OracleCalls.WithLabelValues("ok").Inc()
	if result.Lang != "" && result.Lang != t.lead.Language {
		t.setLanguage(result.Lang)
	}
	return result.FreeText
}

func slotSchema(lead *store.Lead) []oracle.SlotField {
	return []oracle.SlotField{
		{Name: SlotGoal, Description: "why the user wants a property", Enum: []string{"investment", "living", "residency", "rent"}},
		{Name: SlotCategory, Description: "property category", Enum: []string{"residential", "commercial"}},
		{Name: SlotBudget, Description: "budget in AED, as a number"},
		{Name: SlotPropertyType, Description: "property type", Enum: []string{"apartment", "villa", "townhouse", "penthouse", "office", "shop", "warehouse"}},
		{Name: "preferred_location", Description: "neighborhood or area the user prefers"},
		{Name: "payment_method", Description: "cash, mortgage, or installments"},
	}
}

func extractContact(msg *chat_apps.Message) (name, phone string, ok bool) {
	if msg.Contact != nil {
		if p, valid := NormalizePhone(msg.Contact.Phone); valid {
			return msg.Contact.Name, p, true
		}
		return "", "", false
	}
	return ParseContactText(msg.Text)
}

var scheduleKeywords = []string{
	"viewing", "visit", "schedule", "book", "appointment",
	"بازدید", "وقت", "معاينة", "موعد", "просмотр", "встреч", "записат",
}

func hasScheduleIntent(msg *chat_apps.Message) bool {
	if msg.Button == payloadBookViewing {
		return true
	}
	lower := strings.ToLower(msg.Text)
	for _, kw := range scheduleKeywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var categoryWords = map[string]store.PropertyCategory{
	"residential": store.CategoryResidential,
	"مسکونی":      store.CategoryResidential,
	"سكني":        store.CategoryResidential,
	"жил":         store.CategoryResidential,
	"commercial":  store.CategoryCommercial,
	"تجاری":       store.CategoryCommercial,
	"تجاري":       store.CategoryCommercial,
	"коммер":      store.CategoryCommercial,
}

func parseCategory(text string) (store.PropertyCategory, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for word, cat := range categoryWords {
		if strings.Contains(lower, word) {
			return cat, true
		}
	}
	return "", false
}

func parsePropertyType(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for pt, labels := range propertyTypeLabels {
		if strings.Contains(lower, pt) {
			return pt, true
		}
		for _, label := range labels {
			if strings.Contains(lower, strings.ToLower(label)) {
				return pt, true
			}
		}
	}
	return "", false
}

func parseSlotPayload(payload string) (int64, bool) {
	raw, ok := strings.CutPrefix(payload, "slot_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

var dayNames = map[string][7]string{
	"en": {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	"fa": {"یکشنبه", "دوشنبه", "سه‌شنبه", "چهارشنبه", "پنجشنبه", "جمعه", "شنبه"},
	"ar": {"الأحد", "الاثنين", "الثلاثاء", "الأربعاء", "الخميس", "الجمعة", "السبت"},
	"ru": {"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота"},
}

func slotLabel(s *store.ScheduleSlot, lang string) string {
	names, ok := dayNames[lang]
	if !ok {
		names = dayNames["en"]
	}
	day := "?"
	if s.DayOfWeek >= 0 && s.DayOfWeek < 7 {
		day = names[s.DayOfWeek]
	}
	return fmt.Sprintf("%s %s–%s", day, s.StartTime, s.EndTime)
}
