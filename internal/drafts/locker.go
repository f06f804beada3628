package drafts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SessionLockKey builds the redis key guarding draft creation for a session.
func SessionLockKey(sessionID string) string {
	return fmt.Sprintf("drafts:session:%s:lock", sessionID)
}

// Locker hands out short Redis leases. A nil *Locker grants every lease.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lease on key or fails with ErrLocked. The returned func
// releases it; the lease also expires after the TTL.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("drafts: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}, nil
}
