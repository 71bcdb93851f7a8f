package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

func (d *DB) CreateTenant(ctx context.Context, create *store.Tenant) (*store.Tenant, error) {
	verticalsJSON, err := marshalJSON(create.Verticals)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO tenants (
			name, default_language, brand_color, crm_webhook_url,
			admin_channel, admin_channel_identity, subscription_active, verticals
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at
	`
	if err := d.db.QueryRowContext(ctx, query,
		create.Name,
		create.DefaultLanguage,
		create.BrandColor,
		create.CRMWebhookURL,
		create.AdminChannel,
		create.AdminChannelIdentity,
		create.SubscriptionActive,
		verticalsJSON,
	).Scan(&create.ID, &create.CreatedAt, &create.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create tenant")
	}
	return create, nil
}

func (d *DB) GetTenant(ctx context.Context, find *store.FindTenant) (*store.Tenant, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}

	query := `
		SELECT id, name, default_language, brand_color, crm_webhook_url,
			   admin_channel, admin_channel_identity, subscription_active, verticals,
			   created_at, updated_at
		FROM tenants
		WHERE ` + strings.Join(where, " AND ")

	tenant, err := scanTenant(d.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tenant")
	}
	return tenant, nil
}

func (d *DB) ListTenants(ctx context.Context) ([]*store.Tenant, error) {
	query := `
		SELECT id, name, default_language, brand_color, crm_webhook_url,
			   admin_channel, admin_channel_identity, subscription_active, verticals,
			   created_at, updated_at
		FROM tenants
		ORDER BY id
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tenants")
	}
	defer rows.Close()

	var list []*store.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan tenant")
		}
		list = append(list, tenant)
	}
	return list, rows.Err()
}

func (d *DB) UpdateTenant(ctx context.Context, update *store.UpdateTenant) (*store.Tenant, error) {
	set, args := []string{"updated_at = CURRENT_TIMESTAMP"}, []any{}
	add := func(column string, value any) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}

	if v := update.Name; v != nil {
		add("name", *v)
	}
	if v := update.DefaultLanguage; v != nil {
		add("default_language", *v)
	}
	if v := update.BrandColor; v != nil {
		add("brand_color", *v)
	}
	if v := update.CRMWebhookURL; v != nil {
		add("crm_webhook_url", *v)
	}
	if v := update.AdminChannel; v != nil {
		add("admin_channel", string(*v))
	}
	if v := update.AdminChannelIdentity; v != nil {
		add("admin_channel_identity", *v)
	}
	if v := update.SubscriptionActive; v != nil {
		add("subscription_active", *v)
	}
	if update.Verticals != nil {
		verticalsJSON, err := marshalJSON(update.Verticals)
		if err != nil {
			return nil, err
		}
		add("verticals", verticalsJSON)
	}

	args = append(args, update.ID)
	query := `
		UPDATE tenants SET ` + strings.Join(set, ", ") + `
		WHERE id = ?
		RETURNING id, name, default_language, brand_color, crm_webhook_url,
				  admin_channel, admin_channel_identity, subscription_active, verticals,
				  created_at, updated_at
	`
	tenant, err := scanTenant(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to update tenant")
	}
	return tenant, nil
}

func scanTenant(row rowScanner) (*store.Tenant, error) {
	tenant := &store.Tenant{}
	var verticalsJSON string
	if err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.DefaultLanguage,
		&tenant.BrandColor,
		&tenant.CRMWebhookURL,
		&tenant.AdminChannel,
		&tenant.AdminChannelIdentity,
		&tenant.SubscriptionActive,
		&verticalsJSON,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if verticalsJSON != "" && verticalsJSON != "[]" {
		if err := json.Unmarshal([]byte(verticalsJSON), &tenant.Verticals); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal verticals")
		}
	}
	return tenant, nil
}
