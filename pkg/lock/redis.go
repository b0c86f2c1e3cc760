package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "lock:"

// Deletes the key only when it still holds our token.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis instance so that only one
// service replica holds a given lock at a time.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a locker storing keys under "lock:<name>".
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: defaultKeyPrefix}
}

// TryAcquire implements Locker with SET NX PX.
func (r *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lease, bool, error) {
	lease := newLease(name, r)

	ok, err := r.client.SetNX(ctx, r.prefix+name, lease.token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return lease, true, nil
}

func (r *RedisLocker) release(ctx context.Context, name, token string) error {
	deleted, err := compareAndDelete.Run(ctx, r.client, []string{r.prefix + name}, token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	if deleted == 0 {
		return ErrLeaseNotHeld
	}
	return nil
}

// Health returns the health status of the Redis connection
func (r *RedisLocker) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"status": "up",
	}

	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}

	return status
}
