// Package db provides the database driver dispatch.
package db

import (
	"github.com/pkg/errors"

	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/store"
	"github.com/propflow/propflow/store/db/postgres"
	"github.com/propflow/propflow/store/db/sqlite"
)

// NewDBDriver creates the store driver selected by the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "postgres":
		return postgres.NewDB(profile)
	case "sqlite":
		return sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
