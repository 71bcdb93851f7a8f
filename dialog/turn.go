package dialog

import (
	"log/slog"
	"time"

	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/store"
)

// slotTransactionType is a pseudo pending slot used when integrity recovery
// has to re-ask buy-or-rent before the budget question.
const slotTransactionType = "transaction_type"

// turn carries the per-message context through a handler. Mutation helpers
// keep the in-memory lead and the pending UpdateLead in step so Process can
// persist the whole turn in one write.
type turn struct {
	machine  *Machine
	tenant   *store.Tenant
	lead     *store.Lead
	msg      *chat_apps.Message
	vertical string
	now      time.Time
	log      *slog.Logger
	update   store.UpdateLead
}

// lang returns the effective conversation language.
func (t *turn) lang() string {
	if isSupportedLanguage(t.lead.Language) {
		return t.lead.Language
	}
	if isSupportedLanguage(t.msg.LocaleHint) {
		return t.msg.LocaleHint
	}
	if isSupportedLanguage(t.tenant.DefaultLanguage) {
		return t.tenant.DefaultLanguage
	}
	return "en"
}

func (t *turn) setState(s store.LeadState) {
	t.lead.State = s
	t.update.State = &s
}

func (t *turn) setPendingSlot(slot string) {
	t.lead.PendingSlot = slot
	t.update.PendingSlot = &slot
}

func (t *turn) setLanguage(lang string) {
	t.lead.Language = lang
	t.update.Language = &lang
}

func (t *turn) setName(name string) {
	t.lead.Name = name
	t.update.Name = &name
}

func (t *turn) setPhone(phone string) {
	t.lead.Phone = phone
	t.update.Phone = &phone
}

func (t *turn) setStatus(status store.LeadStatus) {
	t.lead.Status = status
	t.update.Status = &status
}

// fillSlot marks a slot as collected. filled_slots only grows; an existing
// entry is left untouched.
func (t *turn) fillSlot(name string) {
	t.lead.FilledSlots = markSlot(t.lead.FilledSlots, name)
	t.update.FilledSlots = t.lead.FilledSlots
}

func (t *turn) setGoal(goal store.Goal) {
	t.lead.Goal = goal
	t.update.Goal = &goal

	txn := store.TransactionBuy
	if goal == store.GoalRent {
		txn = store.TransactionRent
	}
	t.lead.TransactionType = txn
	t.update.TransactionType = &txn
	t.fillSlot(SlotGoal)
}

func (t *turn) setTransactionType(txn store.TransactionType) {
	t.lead.TransactionType = txn
	t.update.TransactionType = &txn
}

func (t *turn) setCategory(cat store.PropertyCategory) {
	t.lead.PropertyCategory = cat
	t.update.PropertyCategory = &cat
	t.fillSlot(SlotCategory)
}

func (t *turn) setBudget(b Band) {
	t.lead.BudgetMin = b.Min
	t.lead.BudgetMax = b.Max
	t.update.BudgetMin = &b.Min
	t.update.BudgetMax = &b.Max
	t.fillSlot(SlotBudget)
}

func (t *turn) setPropertyType(pt string) {
	t.lead.PropertyType = pt
	t.update.PropertyType = &pt
	t.fillSlot(SlotPropertyType)
}

func (t *turn) bumpUrgency(by int) {
	score := t.lead.UrgencyScore + by
	if score > 10 {
		score = 10
	}
	t.lead.UrgencyScore = score
	t.update.UrgencyScore = &score

	fomo := t.lead.FomoMessagesSent + 1
	t.lead.FomoMessagesSent = fomo
	t.update.FomoMessagesSent = &fomo
}

// reset restores the lead to START on /start. Qualification slots and the
// filled set are cleared; engagement counters and the phone survive the
// reset.
func (t *turn) reset() {
	t.setState(store.StateStart)
	t.setPendingSlot("")

	empty := ""
	var zeroGoal store.Goal
	var zeroTxn store.TransactionType
	var zeroCat store.PropertyCategory
	var zero int64
	ghost := false

	t.lead.Goal = zeroGoal
	t.update.Goal = &zeroGoal
	t.lead.TransactionType = zeroTxn
	t.update.TransactionType = &zeroTxn
	t.lead.PropertyCategory = zeroCat
	t.update.PropertyCategory = &zeroCat
	t.lead.PropertyType = empty
	t.update.PropertyType = &empty
	t.lead.BudgetMin = zero
	t.update.BudgetMin = &zero
	t.lead.BudgetMax = zero
	t.update.BudgetMax = &zero
	t.lead.FilledSlots = []string{}
	t.update.FilledSlots = []string{}
	t.lead.GhostReminderSent = ghost
	t.update.GhostReminderSent = &ghost

	t.log.Info("dialog: lead reset by /start")
}
