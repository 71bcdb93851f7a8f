// Package postgres implements the store driver on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"strconv"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/store"
)

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// DB is the PostgreSQL implementation of store.Driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL connection using the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrations are applied in order; schema_version records the last applied
// index. Statements within one migration run in a single transaction.
var migrations = []string{
	`CREATE TABLE tenants (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		default_language TEXT NOT NULL DEFAULT 'en',
		brand_color TEXT NOT NULL DEFAULT '',
		crm_webhook_url TEXT NOT NULL DEFAULT '',
		admin_channel TEXT NOT NULL DEFAULT '',
		admin_channel_identity TEXT NOT NULL DEFAULT '',
		subscription_active BOOLEAN NOT NULL DEFAULT TRUE,
		verticals JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE leads (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL REFERENCES tenants (id),
		channel TEXT NOT NULL,
		channel_identity TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en',
		goal TEXT NOT NULL DEFAULT '',
		transaction_type TEXT NOT NULL DEFAULT '',
		property_category TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL DEFAULT '',
		budget_min BIGINT NOT NULL DEFAULT 0,
		budget_max BIGINT NOT NULL DEFAULT 0,
		bedrooms_min INTEGER NOT NULL DEFAULT 0,
		bedrooms_max INTEGER NOT NULL DEFAULT 0,
		preferred_locations TEXT[] NOT NULL DEFAULT '{}',
		payment_method TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'START',
		pending_slot TEXT NOT NULL DEFAULT '',
		filled_slots TEXT[] NOT NULL DEFAULT '{}',
		conversation_data JSONB NOT NULL DEFAULT '{}',
		last_interaction TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ghost_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
		fomo_messages_sent INTEGER NOT NULL DEFAULT 0,
		urgency_score INTEGER NOT NULL DEFAULT 0,
		messages_count INTEGER NOT NULL DEFAULT 0,
		voice_messages_count INTEGER NOT NULL DEFAULT 0,
		qr_scan_count INTEGER NOT NULL DEFAULT 0,
		catalog_views INTEGER NOT NULL DEFAULT 0,
		lead_score INTEGER NOT NULL DEFAULT 0,
		temperature TEXT NOT NULL DEFAULT 'cold',
		status TEXT NOT NULL DEFAULT 'new',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (tenant_id, channel_identity)
	);
	CREATE INDEX idx_leads_tenant_status ON leads (tenant_id, status);
	CREATE INDEX idx_leads_ghost ON leads (tenant_id, ghost_reminder_sent, last_interaction);

	CREATE TABLE properties (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL REFERENCES tenants (id),
		title TEXT NOT NULL,
		price BIGINT NOT NULL,
		bedrooms INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL DEFAULT '',
		property_category TEXT NOT NULL DEFAULT '',
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		is_available BOOLEAN NOT NULL DEFAULT TRUE,
		is_off_plan BOOLEAN NOT NULL DEFAULT FALSE,
		is_urgent BOOLEAN NOT NULL DEFAULT FALSE,
		golden_visa_eligible BOOLEAN NOT NULL DEFAULT FALSE,
		expected_roi DOUBLE PRECISION NOT NULL DEFAULT 0,
		media_refs TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX idx_properties_tenant ON properties (tenant_id, is_available);

	CREATE TABLE knowledge (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL REFERENCES tenants (id),
		category TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		keywords TEXT[] NOT NULL DEFAULT '{}',
		priority INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE schedule_slots (
		id BIGSERIAL PRIMARY KEY,
		tenant_id BIGINT NOT NULL REFERENCES tenants (id),
		day_of_week INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_booked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE appointments (
		id TEXT PRIMARY KEY,
		tenant_id BIGINT NOT NULL REFERENCES tenants (id),
		lead_id BIGINT NOT NULL REFERENCES leads (id),
		slot_id BIGINT NOT NULL REFERENCES schedule_slots (id),
		status TEXT NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (slot_id)
	);

	CREATE TABLE property_notifications (
		tenant_id BIGINT NOT NULL,
		lead_id BIGINT NOT NULL,
		property_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (lead_id, property_id)
	);`,
}

func (d *DB) currentVersion(ctx context.Context) (int, error) {
	if _, err := d.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, errors.Wrap(err, "failed to ensure schema_version table")
	}
	var version int
	err := d.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return version, nil
}

// PendingMigrations reports how many migrations have not been applied.
func (d *DB) PendingMigrations(ctx context.Context) (int, error) {
	version, err := d.currentVersion(ctx)
	if err != nil {
		return 0, err
	}
	return len(migrations) - version, nil
}

// Migrate applies all pending migrations.
func (d *DB) Migrate(ctx context.Context) error {
	version, err := d.currentVersion(ctx)
	if err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "failed to begin migration tx")
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "failed to apply migration %d", i+1)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "failed to reset schema version")
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, i+1); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "failed to record schema version")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "failed to commit migration %d", i+1)
		}
	}
	return nil
}
