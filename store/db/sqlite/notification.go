package sqlite

import (
	"context"

	"github.com/pkg/errors"
)

// RecordPropertyNotification inserts the (lead, property) dedup row. INSERT
// OR IGNORE makes the insert the atomic claim to send the notification.
func (d *DB) RecordPropertyNotification(ctx context.Context, tenantID, leadID, propertyID int64) (bool, error) {
	result, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO property_notifications (tenant_id, lead_id, property_id)
		VALUES (?, ?, ?)
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
