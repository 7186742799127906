package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// SubscriberLock serializes EBICS transactions for one subscriber across
// process instances using Redis SET NX. The Postgres row lock
// (EbicsSubscriberRepository.GetForUpdate) already serializes within one
// process; this adds the same guarantee across a horizontally scaled
// deployment, since two Nexus instances racing the same subscriber's
// NextOrderID would otherwise both believe they hold it.
type SubscriberLock struct {
	client *goredis.Client
	prefix string
}

// NewSubscriberLock creates a new Redis-backed SubscriberLock.
func NewSubscriberLock(client *goredis.Client) *SubscriberLock {
	return &SubscriberLock{client: client, prefix: "sub-lock:"}
}

func (l *SubscriberLock) key(bankConnectionID uuid.UUID) string {
	return l.prefix + bankConnectionID.String()
}

// Acquire attempts to take the lock for bankConnectionID, returning a token
// that must be passed to Release. ttl bounds how long a crashed holder can
// block the subscriber; callers should choose it comfortably longer than
// the slowest real EBICS download/upload round trip.
func (l *SubscriberLock) Acquire(ctx context.Context, bankConnectionID uuid.UUID, ttl time.Duration) (token string, acquired bool, err error) {
	token = uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(bankConnectionID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis acquire subscriber lock: %w", err)
	}
	return token, ok, nil
}

// Release frees the lock for bankConnectionID only if token still holds
// it, so a lock that already expired and was re-acquired by another holder
// is never released out from under them.
func (l *SubscriberLock) Release(ctx context.Context, bankConnectionID uuid.UUID, token string) error {
	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`
	if err := l.client.Eval(ctx, script, []string{l.key(bankConnectionID)}, token).Err(); err != nil {
		return fmt.Errorf("redis release subscriber lock: %w", err)
	}
	return nil
}
