package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberLock_Acquire_FirstCallSucceeds(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewSubscriberLock(client)
	connID := uuid.New()

	token, ok, err := lock.Acquire(context.Background(), connID, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)
}

func TestSubscriberLock_Acquire_SecondCallFailsWhileHeld(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewSubscriberLock(client)
	connID := uuid.New()

	_, ok1, err := lock.Acquire(context.Background(), connID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok1)

	_, ok2, err := lock.Acquire(context.Background(), connID, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok2, "a held lock must not be re-acquirable")
}

func TestSubscriberLock_Release_AllowsReacquire(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewSubscriberLock(client)
	connID := uuid.New()

	token, ok, err := lock.Acquire(context.Background(), connID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(context.Background(), connID, token))

	_, ok2, err := lock.Acquire(context.Background(), connID, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok2, "lock should be acquirable again after release")
}

func TestSubscriberLock_Release_StaleTokenIsNoop(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewSubscriberLock(client)
	connID := uuid.New()

	_, ok, err := lock.Acquire(context.Background(), connID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(context.Background(), connID, "not-the-real-token"))

	_, ok2, err := lock.Acquire(context.Background(), connID, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok2, "a release with the wrong token must not free the lock")
}

func TestSubscriberLock_Acquire_ExpiresAfterTTL(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	lock := NewSubscriberLock(client)
	connID := uuid.New()

	_, ok, err := lock.Acquire(context.Background(), connID, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	s.FastForward(2 * time.Second)

	_, ok2, err := lock.Acquire(context.Background(), connID, time.Second)
	require.NoError(t, err)
	assert.True(t, ok2, "expired lock should be acquirable again")
}
