// Package storetest provides an in-memory store.Driver for package tests.
// It mirrors the filter semantics of the SQL drivers closely enough for the
// dialogue and worker tests to run without a database.
package storetest

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propflow/propflow/store"
)

// Driver is an in-memory store.Driver.
type Driver struct {
	mu sync.Mutex

	tenants       map[int64]*store.Tenant
	leads         map[int64]*store.Lead
	properties    map[int64]*store.Property
	knowledge     map[int64]*store.KnowledgeEntry
	slots         map[int64]*store.ScheduleSlot
	appointments  []*store.Appointment
	notifications map[[3]int64]bool

	nextID int64
}

func New() *Driver {
	return &Driver{
		tenants:       make(map[int64]*store.Tenant),
		leads:         make(map[int64]*store.Lead),
		properties:    make(map[int64]*store.Property),
		knowledge:     make(map[int64]*store.KnowledgeEntry),
		slots:         make(map[int64]*store.ScheduleSlot),
		notifications: make(map[[3]int64]bool),
	}
}

func (d *Driver) GetDB() *sql.DB { return nil }
func (d *Driver) Close() error   { return nil }

func (d *Driver) Migrate(context.Context) error { return nil }
func (d *Driver) PendingMigrations(context.Context) (int, error) { return 0, nil }

func (d *Driver) id() int64 {
	d.nextID++
	return d.nextID
}

// --- tenants ---

func (d *Driver) CreateTenant(_ context.Context, create *store.Tenant) (*store.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := *create
	if t.ID == 0 {
		t.ID = d.id()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	d.tenants[t.ID] = &t
	out := t
	return &out, nil
}

func (d *Driver) GetTenant(_ context.Context, find *store.FindTenant) (*store.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if find.ID == nil {
		return nil, nil
	}
	t, ok := d.tenants[*find.ID]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (d *Driver) ListTenants(context.Context) ([]*store.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.Tenant, 0, len(d.tenants))
	for _, t := range d.tenants {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Driver) UpdateTenant(_ context.Context, update *store.UpdateTenant) (*store.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tenants[update.ID]
	if !ok {
		return nil, nil
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.DefaultLanguage != nil {
		t.DefaultLanguage = *update.DefaultLanguage
	}
	if update.BrandColor != nil {
		t.BrandColor = *update.BrandColor
	}
	if update.CRMWebhookURL != nil {
		t.CRMWebhookURL = *update.CRMWebhookURL
	}
	if update.AdminChannel != nil {
		t.AdminChannel = *update.AdminChannel
	}
	if update.AdminChannelIdentity != nil {
		t.AdminChannelIdentity = *update.AdminChannelIdentity
	}
	if update.SubscriptionActive != nil {
		t.SubscriptionActive = *update.SubscriptionActive
	}
	if update.Verticals != nil {
		t.Verticals = update.Verticals
	}
	t.UpdatedAt = time.Now()
	out := *t
	return &out, nil
}

// --- leads ---

func (d *Driver) CreateLead(_ context.Context, create *store.Lead) (*store.Lead, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := *create
	if l.ID == 0 {
		l.ID = d.id()
	}
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	d.leads[l.ID] = &l
	out := l
	return &out, nil
}

func matchLead(l *store.Lead, find *store.FindLead) bool {
	if find.ID != nil && l.ID != *find.ID {
		return false
	}
	if find.TenantID != nil && l.TenantID != *find.TenantID {
		return false
	}
	if find.Channel != nil && l.Channel != *find.Channel {
		return false
	}
	if find.ChannelIdentity != nil && l.ChannelIdentity != *find.ChannelIdentity {
		return false
	}
	if len(find.Statuses) > 0 {
		found := false
		for _, s := range find.Statuses {
			if l.Status == s {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	for _, s := range find.ExcludeStates {
		if l.State == s {
			return false
		}
	}
	if find.HasPhone != nil && (l.Phone != "") != *find.HasPhone {
		return false
	}
	if find.InactiveSince != nil && l.LastInteraction.After(*find.InactiveSince) {
		return false
	}
	if find.GhostPending != nil && l.GhostReminderSent == *find.GhostPending {
		return false
	}
	if find.CreatedAfter != nil && l.CreatedAt.Before(*find.CreatedAfter) {
		return false
	}
	return true
}

func (d *Driver) GetLead(ctx context.Context, find *store.FindLead) (*store.Lead, error) {
	leads, err := d.ListLeads(ctx, find)
	if err != nil || len(leads) == 0 {
		return nil, err
	}
	return leads[0], nil
}

func (d *Driver) ListLeads(_ context.Context, find *store.FindLead) ([]*store.Lead, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Lead
	for _, l := range d.leads {
		if matchLead(l, find) {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if find.Limit != nil && len(out) > *find.Limit {
		out = out[:*find.Limit]
	}
	return out, nil
}

func (d *Driver) UpdateLead(_ context.Context, u *store.UpdateLead) (*store.Lead, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.leads[u.ID]
	if !ok || l.TenantID != u.TenantID {
		return nil, nil
	}
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.Phone != nil {
		l.Phone = *u.Phone
	}
	if u.Language != nil {
		l.Language = *u.Language
	}
	if u.Goal != nil {
		l.Goal = *u.Goal
	}
	if u.TransactionType != nil {
		l.TransactionType = *u.TransactionType
	}
	if u.PropertyCategory != nil {
		l.PropertyCategory = *u.PropertyCategory
	}
	if u.PropertyType != nil {
		l.PropertyType = *u.PropertyType
	}
	if u.BudgetMin != nil {
		l.BudgetMin = *u.BudgetMin
	}
	if u.BudgetMax != nil {
		l.BudgetMax = *u.BudgetMax
	}
	if u.BedroomsMin != nil {
		l.BedroomsMin = *u.BedroomsMin
	}
	if u.BedroomsMax != nil {
		l.BedroomsMax = *u.BedroomsMax
	}
	if u.PreferredLocations != nil {
		l.PreferredLocations = u.PreferredLocations
	}
	if u.PaymentMethod != nil {
		l.PaymentMethod = *u.PaymentMethod
	}
	if u.Purpose != nil {
		l.Purpose = *u.Purpose
	}
	if u.State != nil {
		l.State = *u.State
	}
	if u.PendingSlot != nil {
		l.PendingSlot = *u.PendingSlot
	}
	if u.FilledSlots != nil {
		l.FilledSlots = u.FilledSlots
	}
	if u.ConversationData != nil {
		l.ConversationData = u.ConversationData
	}
	if u.LastInteraction != nil {
		l.LastInteraction = *u.LastInteraction
	}
	if u.GhostReminderSent != nil {
		l.GhostReminderSent = *u.GhostReminderSent
	}
	if u.FomoMessagesSent != nil {
		l.FomoMessagesSent = *u.FomoMessagesSent
	}
	if u.UrgencyScore != nil {
		l.UrgencyScore = *u.UrgencyScore
	}
	if u.MessagesCount != nil {
		l.MessagesCount = *u.MessagesCount
	}
	if u.VoiceMessagesCount != nil {
		l.VoiceMessagesCount = *u.VoiceMessagesCount
	}
	if u.QRScanCount != nil {
		l.QRScanCount = *u.QRScanCount
	}
	if u.CatalogViews != nil {
		l.CatalogViews = *u.CatalogViews
	}
	if u.LeadScore != nil {
		l.LeadScore = *u.LeadScore
	}
	if u.Temperature != nil {
		l.Temperature = *u.Temperature
	}
	if u.Status != nil {
		l.Status = *u.Status
	}
	l.UpdatedAt = time.Now()
	out := *l
	return &out, nil
}

// --- properties ---

func (d *Driver) CreateProperty(_ context.Context, create *store.Property) (*store.Property, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := *create
	if p.ID == 0 {
		p.ID = d.id()
	}
	p.CreatedAt = time.Now()
	d.properties[p.ID] = &p
	out := p
	return &out, nil
}

func matchProperty(p *store.Property, find *store.FindProperty) bool {
	if find.ID != nil && p.ID != *find.ID {
		return false
	}
	if find.TenantID != nil && p.TenantID != *find.TenantID {
		return false
	}
	if find.PropertyCategory != nil && p.PropertyCategory != *find.PropertyCategory {
		return false
	}
	if find.PropertyType != nil && p.PropertyType != *find.PropertyType {
		return false
	}
	if find.PriceMin != nil && p.Price < *find.PriceMin {
		return false
	}
	if find.PriceMax != nil && p.Price > *find.PriceMax {
		return false
	}
	if find.BedroomsMin != nil && p.Bedrooms < *find.BedroomsMin {
		return false
	}
	if find.BedroomsMax != nil && p.Bedrooms > *find.BedroomsMax {
		return false
	}
	if find.OnlyAvailable && !p.IsAvailable {
		return false
	}
	if find.OnlyFeatured && !p.IsFeatured {
		return false
	}
	return true
}

func (d *Driver) GetProperty(ctx context.Context, find *store.FindProperty) (*store.Property, error) {
	props, err := d.ListProperties(ctx, find)
	if err != nil || len(props) == 0 {
		return nil, err
	}
	return props[0], nil
}

func (d *Driver) ListProperties(_ context.Context, find *store.FindProperty) ([]*store.Property, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Property
	for _, p := range d.properties {
		if matchProperty(p, find) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if find.Limit != nil && len(out) > *find.Limit {
		out = out[:*find.Limit]
	}
	return out, nil
}

func (d *Driver) MarkPropertyUnavailable(_ context.Context, tenantID, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.properties[id]; ok && p.TenantID == tenantID {
		p.IsAvailable = false
	}
	return nil
}

// --- knowledge ---

func (d *Driver) CreateKnowledge(_ context.Context, create *store.KnowledgeEntry) (*store.KnowledgeEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := *create
	if k.ID == 0 {
		k.ID = d.id()
	}
	k.CreatedAt = time.Now()
	k.UpdatedAt = k.CreatedAt
	d.knowledge[k.ID] = &k
	out := k
	return &out, nil
}

func (d *Driver) ListKnowledge(_ context.Context, find *store.FindKnowledge) ([]*store.KnowledgeEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.KnowledgeEntry
	for _, k := range d.knowledge {
		if find.TenantID != nil && k.TenantID != *find.TenantID {
			continue
		}
		if find.Language != nil && !strings.EqualFold(k.Language, *find.Language) {
			continue
		}
		if find.Category != nil && k.Category != *find.Category {
			continue
		}
		if find.OnlyActive && !k.IsActive {
			continue
		}
		c := *k
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- schedule ---

func (d *Driver) CreateScheduleSlot(_ context.Context, create *store.ScheduleSlot) (*store.ScheduleSlot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := *create
	if s.ID == 0 {
		s.ID = d.id()
	}
	s.CreatedAt = time.Now()
	d.slots[s.ID] = &s
	out := s
	return &out, nil
}

func (d *Driver) ListScheduleSlots(_ context.Context, find *store.FindScheduleSlot) ([]*store.ScheduleSlot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.ScheduleSlot
	for _, s := range d.slots {
		if find.TenantID != nil && s.TenantID != *find.TenantID {
			continue
		}
		if find.OnlyFree && s.IsBooked {
			continue
		}
		if find.DayOfWeek != nil && s.DayOfWeek != *find.DayOfWeek {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if find.Limit != nil && len(out) > *find.Limit {
		out = out[:*find.Limit]
	}
	return out, nil
}

func (d *Driver) BookScheduleSlot(_ context.Context, tenantID, slotID, leadID int64) (*store.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[slotID]
	if !ok || s.TenantID != tenantID || s.IsBooked {
		return nil, store.ErrSlotTaken
	}
	s.IsBooked = true
	appt := &store.Appointment{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		LeadID:    leadID,
		SlotID:    slotID,
		Status:    "confirmed",
		CreatedAt: time.Now(),
	}
	d.appointments = append(d.appointments, appt)
	out := *appt
	return &out, nil
}

func (d *Driver) ListAppointments(_ context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Appointment
	for _, a := range d.appointments {
		if find.TenantID != nil && a.TenantID != *find.TenantID {
			continue
		}
		if find.LeadID != nil && a.LeadID != *find.LeadID {
			continue
		}
		if find.SlotID != nil && a.SlotID != *find.SlotID {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func (d *Driver) RecordPropertyNotification(_ context.Context, tenantID, leadID, propertyID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := [3]int64{tenantID, leadID, propertyID}
	if d.notifications[key] {
		return false, nil
	}
	d.notifications[key] = true
	return true, nil
}

var _ store.Driver = (*Driver)(nil)
