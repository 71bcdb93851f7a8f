package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

func (d *DB) CreateTenant(ctx context.Context, create *store.Tenant) (*store.Tenant, error) {
	verticalsJSON, err := json.Marshal(create.Verticals)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal verticals")
	}

	query := `
		INSERT INTO tenants (
			name, default_language, brand_color, crm_webhook_url,
			admin_channel, admin_channel_identity, subscription_active, verticals
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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
		where, args = append(where, "id = $1"), append(args, *find.ID)
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
	set, args := []string{"updated_at = NOW()"}, []any{}
	if v := update.Name; v != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.DefaultLanguage; v != nil {
		set, args = append(set, "default_language = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.BrandColor; v != nil {
		set, args = append(set, "brand_color = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.CRMWebhookURL; v != nil {
		set, args = append(set, "crm_webhook_url = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.AdminChannel; v != nil {
		set, args = append(set, "admin_channel = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.AdminChannelIdentity; v != nil {
		set, args = append(set, "admin_channel_identity = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.SubscriptionActive; v != nil {
		set, args = append(set, "subscription_active = "+placeholder(len(args)+1)), append(args, *v)
	}
	if update.Verticals != nil {
		verticalsJSON, err := json.Marshal(update.Verticals)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal verticals")
		}
		set, args = append(set, "verticals = "+placeholder(len(args)+1)), append(args, verticalsJSON)
	}

	args = append(args, update.ID)
	query := `
		UPDATE tenants SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*store.Tenant, error) {
	tenant := &store.Tenant{}
	var verticalsJSON []byte
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
	if len(verticalsJSON) > 0 {
		if err := json.Unmarshal(verticalsJSON, &tenant.Verticals); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal verticals")
		}
	}
	return tenant, nil
}
