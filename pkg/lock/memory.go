package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return NewMemoryLockerWithClock(time.Now)
}

// NewMemoryLockerWithClock creates a locker that reads time from now.
func NewMemoryLockerWithClock(now func() time.Time) *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// TryAcquire implements Locker.
func (m *MemoryLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[name]; ok && now.Before(e.expires) {
		return nil, false, nil
	}

	lease := newLease(name, m)
	m.entries[name] = memoryEntry{token: lease.token, expires: now.Add(ttl)}
	return lease, true, nil
}

func (m *MemoryLocker) release(_ context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok || e.token != token || !m.now().Before(e.expires) {
		return ErrLeaseNotHeld
	}
	delete(m.entries, name)
	return nil
}
