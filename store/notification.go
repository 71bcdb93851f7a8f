package store

import "context"

// The property_notifications table records which (lead, property) pairs have
// already been notified by the match notifier, so inventory churn never
// messages the same lead twice about the same property.

// RecordPropertyNotification inserts the dedup row. Returns false when the
// pair was already recorded, in which case no notification must be sent.
func (s *Store) RecordPropertyNotification(ctx context.Context, tenantID, leadID, propertyID int64) (bool, error) {
	return s.driver.RecordPropertyNotification(ctx, tenantID, leadID, propertyID)
}
