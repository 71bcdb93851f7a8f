package postgres

import (
	"context"

	"github.com/pkg/errors"
)

// RecordPropertyNotification inserts the (lead, property) dedup row.
// ON CONFLICT DO NOTHING makes the insert the atomic claim: whichever caller
// inserts the row is the one that sends the notification.
func (d *DB) RecordPropertyNotification(ctx context.Context, tenantID, leadID, propertyID int64) (bool, error) {
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO property_notifications (tenant_id, lead_id, property_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (lead_id, property_id) DO NOTHING
	`, tenantID, leadID, propertyID)
	if err != nil {
		return false, errors.Wrap(err, "failed to record property notification")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read notification insert result")
	}
	return n > 0, nil
}
