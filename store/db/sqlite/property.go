package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

const propertyColumns = `
	id, tenant_id, title, price, bedrooms, location,
	property_type, property_category,
	is_featured, is_available, is_off_plan, is_urgent, golden_visa_eligible,
	expected_roi, media_refs, created_at`

func (d *DB) CreateProperty(ctx context.Context, create *store.Property) (*store.Property, error) {
	mediaJSON, err := jsonStrings(create.MediaRefs)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO properties (
			tenant_id, title, price, bedrooms, location,
			property_type, property_category,
			is_featured, is_available, is_off_plan, is_urgent, golden_visa_eligible,
			expected_roi, media_refs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at
	`
	if err := d.db.QueryRowContext(ctx, query,
		create.TenantID,
		create.Title,
		create.Price,
		create.Bedrooms,
		create.Location,
		create.PropertyType,
		create.PropertyCategory,
		create.IsFeatured,
		create.IsAvailable,
		create.IsOffPlan,
		create.IsUrgent,
		create.GoldenVisaEligible,
		create.ExpectedROI,
		mediaJSON,
	).Scan(&create.ID, &create.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create property")
	}
	return create, nil
}

func (d *DB) GetProperty(ctx context.Context, find *store.FindProperty) (*store.Property, error) {
	where, args := buildPropertyFilter(find)
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE ` + strings.Join(where, " AND ") + ` LIMIT 1`

	property, err := scanProperty(d.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get property")
	}
	return property, nil
}

func (d *DB) ListProperties(ctx context.Context, find *store.FindProperty) ([]*store.Property, error) {
	where, args := buildPropertyFilter(find)
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY is_featured DESC, created_at DESC`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list properties")
	}
	defer rows.Close()

	var list []*store.Property
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan property")
		}
		list = append(list, property)
	}
	return list, rows.Err()
}

func (d *DB) MarkPropertyUnavailable(ctx context.Context, tenantID, id int64) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE properties SET is_available = 0 WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return errors.Wrap(err, "failed to mark property unavailable")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("property %d not found for tenant %d", id, tenantID)
	}
	return nil
}

func buildPropertyFilter(find *store.FindProperty) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	add := func(condition string, value any) {
		where = append(where, condition+" ?")
		args = append(args, value)
	}

	if v := find.ID; v != nil {
		add("id =", *v)
	}
	if v := find.TenantID; v != nil {
		add("tenant_id =", *v)
	}
	if v := find.PropertyCategory; v != nil {
		add("property_category =", string(*v))
	}
	if v := find.PropertyType; v != nil {
		add("property_type =", *v)
	}
	if v := find.PriceMin; v != nil {
		add("price >=", *v)
	}
	if v := find.PriceMax; v != nil {
		add("price <=", *v)
	}
	if v := find.BedroomsMin; v != nil {
		add("bedrooms >=", *v)
	}
	if v := find.BedroomsMax; v != nil {
		add("bedrooms <=", *v)
	}
	if find.OnlyAvailable {
		where = append(where, "is_available = 1")
	}
	if find.OnlyFeatured {
		where = append(where, "is_featured = 1")
	}
	return where, args
}

func scanProperty(row rowScanner) (*store.Property, error) {
	property := &store.Property{}
	var mediaJSON string
	if err := row.Scan(
		&property.ID,
		&property.TenantID,
		&property.Title,
		&property.Price,
		&property.Bedrooms,
		&property.Location,
		&property.PropertyType,
		&property.PropertyCategory,
		&property.IsFeatured,
		&property.IsAvailable,
		&property.IsOffPlan,
		&property.IsUrgent,
		&property.GoldenVisaEligible,
		&property.ExpectedROI,
		&mediaJSON,
		&property.CreatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if property.MediaRefs, err = unmarshalStrings(mediaJSON); err != nil {
		return nil, err
	}
	return property, nil
}
