package store

import (
	"context"
	"time"
)

// ScheduleSlot is one bookable viewing window of a tenant.
type ScheduleSlot struct {
	ID        int64
	TenantID  int64
	DayOfWeek int    // 0 = Sunday
	StartTime string // "HH:MM"
	EndTime   string
	IsBooked  bool
	CreatedAt time.Time
}

// Appointment links a lead to a booked slot.
type Appointment struct {
	ID        string // uuid
	TenantID  int64
	LeadID    int64
	SlotID    int64
	Status    string // "confirmed", "cancelled", "done"
	CreatedAt time.Time
}

// FindScheduleSlot is the filter for schedule queries.
type FindScheduleSlot struct {
	TenantID  *int64
	OnlyFree  bool
	DayOfWeek *int
	Limit     *int
}

// FindAppointment is the filter for appointment queries.
type FindAppointment struct {
	TenantID *int64
	LeadID   *int64
	SlotID   *int64
}

func (s *Store) CreateScheduleSlot(ctx context.Context, create *ScheduleSlot) (*ScheduleSlot, error) {
	return s.driver.CreateScheduleSlot(ctx, create)
}

func (s *Store) ListScheduleSlots(ctx context.Context, find *FindScheduleSlot) ([]*ScheduleSlot, error) {
	return s.driver.ListScheduleSlots(ctx, find)
}

// BookScheduleSlot atomically flips is_booked false->true and creates the
// appointment in the same transaction. Returns ErrSlotTaken when the slot is
// already booked.
func (s *Store) BookScheduleSlot(ctx context.Context, tenantID, slotID, leadID int64) (*Appointment, error) {
	return s.driver.BookScheduleSlot(ctx, tenantID, slotID, leadID)
}

func (s *Store) ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error) {
	return s.driver.ListAppointments(ctx, find)
}
