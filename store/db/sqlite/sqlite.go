// Package sqlite implements the store driver on SQLite via modernc.org/sqlite.
// It exists for development and single-box deployments; production uses the
// postgres driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	// Import the pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/store"
)

// DB is the SQLite implementation of store.Driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database at the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite db %s", profile.DSN)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent webhook turns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

var migrations = []string{
	`CREATE TABLE tenants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		default_language TEXT NOT NULL DEFAULT 'en',
		brand_color TEXT NOT NULL DEFAULT '',
		crm_webhook_url TEXT NOT NULL DEFAULT '',
		admin_channel TEXT NOT NULL DEFAULT '',
		admin_channel_identity TEXT NOT NULL DEFAULT '',
		subscription_active INTEGER NOT NULL DEFAULT 1,
		verticals TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL REFERENCES tenants (id),
		channel TEXT NOT NULL,
		channel_identity TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en',
		goal TEXT NOT NULL DEFAULT '',
		transaction_type TEXT NOT NULL DEFAULT '',
		property_category TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL DEFAULT '',
		budget_min INTEGER NOT NULL DEFAULT 0,
		budget_max INTEGER NOT NULL DEFAULT 0,
		bedrooms_min INTEGER NOT NULL DEFAULT 0,
		bedrooms_max INTEGER NOT NULL DEFAULT 0,
		preferred_locations TEXT NOT NULL DEFAULT '[]',
		payment_method TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'START',
		pending_slot TEXT NOT NULL DEFAULT '',
		filled_slots TEXT NOT NULL DEFAULT '[]',
		conversation_data TEXT NOT NULL DEFAULT '{}',
		last_interaction TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ghost_reminder_sent INTEGER NOT NULL DEFAULT 0,
		fomo_messages_sent INTEGER NOT NULL DEFAULT 0,
		urgency_score INTEGER NOT NULL DEFAULT 0,
		messages_count INTEGER NOT NULL DEFAULT 0,
		voice_messages_count INTEGER NOT NULL DEFAULT 0,
		qr_scan_count INTEGER NOT NULL DEFAULT 0,
		catalog_views INTEGER NOT NULL DEFAULT 0,
		lead_score INTEGER NOT NULL DEFAULT 0,
		temperature TEXT NOT NULL DEFAULT 'cold',
		status TEXT NOT NULL DEFAULT 'new',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tenant_id, channel_identity)
	);
	CREATE INDEX idx_leads_tenant_status ON leads (tenant_id, status);
	CREATE INDEX idx_leads_ghost ON leads (tenant_id, ghost_reminder_sent, last_interaction);

	CREATE TABLE properties (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL REFERENCES tenants (id),
		title TEXT NOT NULL,
		price INTEGER NOT NULL,
		bedrooms INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL DEFAULT '',
		property_category TEXT NOT NULL DEFAULT '',
		is_featured INTEGER NOT NULL DEFAULT 0,
		is_available INTEGER NOT NULL DEFAULT 1,
		is_off_plan INTEGER NOT NULL DEFAULT 0,
		is_urgent INTEGER NOT NULL DEFAULT 0,
		golden_visa_eligible INTEGER NOT NULL DEFAULT 0,
		expected_roi REAL NOT NULL DEFAULT 0,
		media_refs TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX idx_properties_tenant ON properties (tenant_id, is_available);

	CREATE TABLE knowledge (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL REFERENCES tenants (id),
		category TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		keywords TEXT NOT NULL DEFAULT '[]',
		priority INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE schedule_slots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL REFERENCES tenants (id),
		day_of_week INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_booked INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE appointments (
		id TEXT PRIMARY KEY,
		tenant_id INTEGER NOT NULL REFERENCES tenants (id),
		lead_id INTEGER NOT NULL REFERENCES leads (id),
		slot_id INTEGER NOT NULL REFERENCES schedule_slots (id) UNIQUE,
		status TEXT NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE property_notifications (
		tenant_id INTEGER NOT NULL,
		lead_id INTEGER NOT NULL,
		property_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
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
		for _, stmt := range strings.Split(migrations[i], ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return errors.Wrapf(err, "failed to apply migration %d", i+1)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "failed to reset schema version")
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "failed to record schema version")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "failed to commit migration %d", i+1)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func marshalJSON(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal json column")
	}
	return string(payload), nil
}

func unmarshalStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal string list column")
	}
	return out, nil
}

func jsonStrings(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	return marshalJSON(in)
}
