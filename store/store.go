package store

import (
	"context"
	"errors"
	"time"

	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/store/cache"
)

// ErrSlotTaken is returned by BookScheduleSlot when the slot is already
// booked. Drivers translate their conditional-update miss into it.
var ErrSlotTaken = errors.New("schedule slot already booked")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	tenantCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		tenantCache: cache.New(cache.Config{
			DefaultTTL:      10 * time.Minute,
			CleanupInterval: 5 * time.Minute,
			MaxItems:        1000,
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) PendingMigrations(ctx context.Context) (int, error) {
	return s.driver.PendingMigrations(ctx)
}

func (s *Store) Close() error {
	s.tenantCache.Close()
	return s.driver.Close()
}
