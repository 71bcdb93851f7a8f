package sqlite

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

func (d *DB) CreateScheduleSlot(ctx context.Context, create *store.ScheduleSlot) (*store.ScheduleSlot, error) {
	query := `
		INSERT INTO schedule_slots (tenant_id, day_of_week, start_time, end_time, is_booked)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, created_at
	`
	if err := d.db.QueryRowContext(ctx, query,
		create.TenantID,
		create.DayOfWeek,
		create.StartTime,
		create.EndTime,
		create.IsBooked,
	).Scan(&create.ID, &create.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create schedule slot")
	}
	return create, nil
}

func (d *DB) ListScheduleSlots(ctx context.Context, find *store.FindScheduleSlot) ([]*store.ScheduleSlot, error) {
	where, args := []string{"1 = 1"}, []any{}
	add := func(condition string, value any) {
		where = append(where, condition+" ?")
		args = append(args, value)
	}

	if v := find.TenantID; v != nil {
		add("tenant_id =", *v)
	}
	if v := find.DayOfWeek; v != nil {
		add("day_of_week =", *v)
	}
	if find.OnlyFree {
		where = append(where, "is_booked = 0")
	}

	query := `
		SELECT id, tenant_id, day_of_week, start_time, end_time, is_booked, created_at
		FROM schedule_slots
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY day_of_week, start_time
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list schedule slots")
	}
	defer rows.Close()

	var list []*store.ScheduleSlot
	for rows.Next() {
		slot := &store.ScheduleSlot{}
		if err := rows.Scan(
			&slot.ID,
			&slot.TenantID,
			&slot.DayOfWeek,
			&slot.StartTime,
			&slot.EndTime,
			&slot.IsBooked,
			&slot.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan schedule slot")
		}
		list = append(list, slot)
	}
	return list, rows.Err()
}

// BookScheduleSlot uses a conditional update as the booking claim: SQLite has
// no FOR UPDATE, but the single writer plus the is_booked guard give the same
// atomicity.
func (d *DB) BookScheduleSlot(ctx context.Context, tenantID, slotID, leadID int64) (*store.Appointment, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin booking tx")
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE schedule_slots SET is_booked = 1 WHERE tenant_id = ? AND id = ? AND is_booked = 0`,
		tenantID, slotID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to book schedule slot")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read booking result")
	}
	if n == 0 {
		return nil, store.ErrSlotTaken
	}

	appointment := &store.Appointment{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		LeadID:   leadID,
		SlotID:   slotID,
		Status:   "confirmed",
	}
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO appointments (id, tenant_id, lead_id, slot_id, status)
		 VALUES (?, ?, ?, ?, ?) RETURNING created_at`,
		appointment.ID, appointment.TenantID, appointment.LeadID, appointment.SlotID, appointment.Status,
	).Scan(&appointment.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create appointment")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit booking")
	}
	return appointment, nil
}

func (d *DB) ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	where, args := []string{"1 = 1"}, []any{}
	add := func(condition string, value any) {
		where = append(where, condition+" ?")
		args = append(args, value)
	}

	if v := find.TenantID; v != nil {
		add("tenant_id =", *v)
	}
	if v := find.LeadID; v != nil {
		add("lead_id =", *v)
	}
	if v := find.SlotID; v != nil {
		add("slot_id =", *v)
	}

	query := `
		SELECT id, tenant_id, lead_id, slot_id, status, created_at
		FROM appointments
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list appointments")
	}
	defer rows.Close()

	var list []*store.Appointment
	for rows.Next() {
		appointment := &store.Appointment{}
		if err := rows.Scan(
			&appointment.ID,
			&appointment.TenantID,
			&appointment.LeadID,
			&appointment.SlotID,
			&appointment.Status,
			&appointment.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan appointment")
		}
		list = append(list, appointment)
	}
	return list, rows.Err()
}
