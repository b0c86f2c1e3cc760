// Package lock provides non-blocking, lease-based mutual exclusion.
//
// A lease is held until it is released or its TTL elapses, whichever comes
// first, so a crashed holder never blocks other instances for longer than
// the TTL.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLeaseNotHeld is returned by Release when the lease expired or another
// holder acquired the lock in the meantime.
var ErrLeaseNotHeld = errors.New("lease not held")

// Locker hands out leases on named locks.
type Locker interface {
	// TryAcquire returns immediately. ok is false when another holder
	// owns the lock; err is only set for infrastructure failures.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (lease *Lease, ok bool, err error)
}

type releaser interface {
	release(ctx context.Context, name, token string) error
}

// Lease is a held lock. Release may be called any number of times.
type Lease struct {
	name  string
	token string
	owner releaser

	mu       sync.Mutex
	released bool
}

func newLease(name string, owner releaser) *Lease {
	return &Lease{name: name, token: uuid.NewString(), owner: owner}
}

// Name returns the lock name.
func (l *Lease) Name() string { return l.name }

// Token identifies this holder.
func (l *Lease) Token() string { return l.token }

// Release gives the lock back. Only the first call talks to the backend;
// later calls return nil.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil
	}
	l.released = true
	return l.owner.release(ctx, l.name, l.token)
}
