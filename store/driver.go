package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate applies the schema. PendingMigrations reports how many
	// statements would run, so the CLI can refuse to start with exit
	// code 3 when auto-migration is disabled.
	Migrate(ctx context.Context) error
	PendingMigrations(ctx context.Context) (int, error)

	CreateTenant(ctx context.Context, create *Tenant) (*Tenant, error)
	GetTenant(ctx context.Context, find *FindTenant) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	UpdateTenant(ctx context.Context, update *UpdateTenant) (*Tenant, error)

	CreateLead(ctx context.Context, create *Lead) (*Lead, error)
	GetLead(ctx context.Context, find *FindLead) (*Lead, error)
	ListLeads(ctx context.Context, find *FindLead) ([]*Lead, error)
	UpdateLead(ctx context.Context, update *UpdateLead) (*Lead, error)

	CreateProperty(ctx context.Context, create *Property) (*Property, error)
	GetProperty(ctx context.Context, find *FindProperty) (*Property, error)
	ListProperties(ctx context.Context, find *FindProperty) ([]*Property, error)
	MarkPropertyUnavailable(ctx context.Context, tenantID, id int64) error

	CreateKnowledge(ctx context.Context, create *KnowledgeEntry) (*KnowledgeEntry, error)
	ListKnowledge(ctx context.Context, find *FindKnowledge) ([]*KnowledgeEntry, error)

	CreateScheduleSlot(ctx context.Context, create *ScheduleSlot) (*ScheduleSlot, error)
	ListScheduleSlots(ctx context.Context, find *FindScheduleSlot) ([]*ScheduleSlot, error)
	BookScheduleSlot(ctx context.Context, tenantID, slotID, leadID int64) (*Appointment, error)
	ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error)

	RecordPropertyNotification(ctx context.Context, tenantID, leadID, propertyID int64) (bool, error)
}
