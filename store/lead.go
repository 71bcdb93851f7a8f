package store

import (
	"context"
	"slices"
	"time"
)

// LeadState is the dialogue phase of a lead. Transitions are owned by the
// dialog package; the store only persists them.
type LeadState string

const (
	StateStart            LeadState = "START"
	StateLanguageSelected LeadState = "LANGUAGE_SELECTED"
	StateWarmup           LeadState = "WARMUP"
	StateCaptureContact   LeadState = "CAPTURE_CONTACT"
	StateSlotFilling      LeadState = "SLOT_FILLING"
	StateValueProposition LeadState = "VALUE_PROPOSITION"
	StateHardGate         LeadState = "HARD_GATE"
	StateEngagement       LeadState = "ENGAGEMENT"
	StateHandoffSchedule  LeadState = "HANDOFF_SCHEDULE"
	StateCompleted        LeadState = "COMPLETED"
)

// LeadStatus is the pipeline status of a lead.
type LeadStatus string

const (
	StatusNew              LeadStatus = "new"
	StatusQualified        LeadStatus = "qualified"
	StatusHot              LeadStatus = "hot"
	StatusViewingScheduled LeadStatus = "viewing_scheduled"
	StatusClosedWon        LeadStatus = "closed_won"
	StatusClosedLost       LeadStatus = "closed_lost"
)

// Temperature is the 4-level bucket derived from the 0-100 lead score.
type Temperature string

const (
	TemperatureCold    Temperature = "cold"
	TemperatureWarm    Temperature = "warm"
	TemperatureHot     Temperature = "hot"
	TemperatureBurning Temperature = "burning"
)

// Goal is the visitor's stated purpose.
type Goal string

const (
	GoalInvestment Goal = "investment"
	GoalLiving     Goal = "living"
	GoalResidency  Goal = "residency"
	GoalRent       Goal = "rent"
)

// TransactionType derives from the goal: rent maps to rent, everything else
// to buy.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionRent TransactionType = "rent"
)

// PropertyCategory partitions the inventory.
type PropertyCategory string

const (
	CategoryResidential PropertyCategory = "residential"
	CategoryCommercial  PropertyCategory = "commercial"
)

// Lead is one prospect per (tenant, channel identity).
type Lead struct {
	ID              int64
	TenantID        int64
	Channel         Channel
	ChannelIdentity string

	// Identity
	Name     string
	Phone    string // normalized E.164, empty until captured
	Language string // en, fa, ar, ru

	// Qualification slots
	Goal               Goal
	TransactionType    TransactionType
	PropertyCategory   PropertyCategory
	PropertyType       string
	BudgetMin          int64 // AED
	BudgetMax          int64
	BedroomsMin        int
	BedroomsMax        int
	PreferredLocations []string
	PaymentMethod      string
	Purpose            string

	// Dialogue state
	State             LeadState
	PendingSlot       string
	FilledSlots       []string
	ConversationData  map[string]string
	LastInteraction   time.Time
	GhostReminderSent bool
	FomoMessagesSent  int
	UrgencyScore      int // 0-10

	// Engagement metrics
	MessagesCount      int
	VoiceMessagesCount int
	QRScanCount        int
	CatalogViews       int
	LeadScore          int // 0-100
	Temperature        Temperature

	Status    LeadStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSlot reports whether the named slot has been filled this session.
func (l *Lead) HasSlot(name string) bool {
	return slices.Contains(l.FilledSlots, name)
}

// HasPhone reports whether a validated phone has been captured.
func (l *Lead) HasPhone() bool {
	return l.Phone != ""
}

// HasBudget reports whether a budget band has been selected.
func (l *Lead) HasBudget() bool {
	return l.BudgetMax > 0 || l.HasSlot("budget")
}

// FindLead is the filter for lead lookups. Every query is tenant-scoped
// except the id lookup used by workers that already hold a scoped row.
type FindLead struct {
	ID              *int64
	TenantID        *int64
	Channel         *Channel
	ChannelIdentity *string
	Statuses        []LeadStatus
	ExcludeStates   []LeadState
	HasPhone        *bool
	InactiveSince   *time.Time
	GhostPending    *bool // ghost_reminder_sent = false
	CreatedAfter    *time.Time
	Limit           *int
}

// UpdateLead carries a partial lead update. Nil fields are left unchanged.
type UpdateLead struct {
	ID       int64
	TenantID int64

	Name     *string
	Phone    *string
	Language *string

	Goal               *Goal
	TransactionType    *TransactionType
	PropertyCategory   *PropertyCategory
	PropertyType       *string
	BudgetMin          *int64
	BudgetMax          *int64
	BedroomsMin        *int
	BedroomsMax        *int
	PreferredLocations []string
	PaymentMethod      *string
	Purpose            *string

	State             *LeadState
	PendingSlot       *string
	FilledSlots       []string
	ConversationData  map[string]string
	LastInteraction   *time.Time
	GhostReminderSent *bool
	FomoMessagesSent  *int
	UrgencyScore      *int

	MessagesCount      *int
	VoiceMessagesCount *int
	QRScanCount        *int
	CatalogViews       *int
	LeadScore          *int
	Temperature        *Temperature

	Status *LeadStatus
}

func (s *Store) CreateLead(ctx context.Context, create *Lead) (*Lead, error) {
	return s.driver.CreateLead(ctx, create)
}

func (s *Store) GetLead(ctx context.Context, find *FindLead) (*Lead, error) {
	return s.driver.GetLead(ctx, find)
}

func (s *Store) ListLeads(ctx context.Context, find *FindLead) ([]*Lead, error) {
	return s.driver.ListLeads(ctx, find)
}

func (s *Store) UpdateLead(ctx context.Context, update *UpdateLead) (*Lead, error) {
	return s.driver.UpdateLead(ctx, update)
}
