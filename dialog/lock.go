package dialog

import (
	"fmt"
	"sync"
)

// leadLock serializes the turns of one lead. waiters counts holders plus
// queued goroutines so the manager knows when the entry can be dropped.
type leadLock struct {
	mu      sync.Mutex
	waiters int
}

// LockManager hands out per-lead advisory locks keyed by
// (tenant_id, channel_identity). Entries with no waiters are evicted on
// release, so the map only holds leads with in-flight turns. The lock is
// best-effort across processes; the store's row-level lock is authoritative
// for slot booking.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*leadLock
}

func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*leadLock)}
}

func lockKey(tenantID int64, channelIdentity string) string {
	return fmt.Sprintf("%d:%s", tenantID, channelIdentity)
}

// Acquire blocks until the lead's lock is held and returns the release
// function.
func (m *LockManager) Acquire(tenantID int64, channelIdentity string) func() {
	key := lockKey(tenantID, channelIdentity)

	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &leadLock{}
		m.locks[key] = l
	}
	l.waiters++
	m.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.mu.Lock()
			l.waiters--
			if l.waiters == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
		})
	}
}

// Len returns the number of tracked leads, for tests and metrics.
func (m *LockManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
