package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

// TestRedisStore tests the redis backed store
func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		s, _ := newTestRedisStore(t)
		st, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, st)
	})

	t.Run("round trip", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		want := testState("203.0.113.5")
		require.NoError(t, s.Save(ctx, want))
		assert.True(t, mr.Exists(DefaultRedisKey))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.IP, got.IP)
	})

	t.Run("corrupt value", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		require.NoError(t, mr.Set(DefaultRedisKey, "garbage"))

		st, err := s.Load(ctx)
		assert.Nil(t, st)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("connect", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := NewRedisClient(RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		s := NewRedisStore(client, "")
		defer s.Close()
		assert.NoError(t, s.Ping(ctx))

		_, err = NewRedisClient(RedisConfig{})
		assert.Error(t, err)
	})

	t.Run("unreachable server is not fatal to construction", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := NewRedisClient(RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond})
		require.NoError(t, err)
		s := NewRedisStore(client, "")
		defer s.Close()

		assert.Error(t, s.Ping(ctx))

		st, err := s.Load(ctx)
		assert.Nil(t, st)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCorrupt)
		assert.Error(t, s.Save(ctx, testState("203.0.113.5")))
	})
}
