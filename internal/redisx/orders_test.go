package redisx

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDailyKey(t *testing.T) {
	day := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "orders:daily:42:20240307", DailyKey(42, day))
}

// setupRedisTest connects to REDIS_TEST_ADDR and skips when it is unset.
func setupRedisTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping redis integration test")
	}
	rdb := New(addr)
	require.NoError(t, Ping(context.Background(), rdb))
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestIdempotency(t *testing.T) {
	rdb := setupRedisTest(t)
	ctx := context.Background()
	idem := NewIdempotency(rdb)
	key := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() { rdb.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, 1, key)) })

	_, ok, err := idem.Lookup(ctx, 1, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idem.Remember(ctx, 1, key, 77))
	id, ok, err := idem.Lookup(ctx, 1, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(77), id)
}

func TestDedup(t *testing.T) {
	rdb := setupRedisTest(t)
	ctx := context.Background()
	d := NewDedup(rdb, "test")
	id := fmt.Sprintf("ev-%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = d.Forget(ctx, id) })

	first, err := d.First(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.First(ctx, id)
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, d.Forget(ctx, id))
	first, err = d.First(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestDailyTotals(t *testing.T) {
	rdb := setupRedisTest(t)
	ctx := context.Background()
	member := time.Now().UnixNano() % 1_000_000
	day := time.Now()
	t.Cleanup(func() { rdb.Del(ctx, DailyKey(member, day)) })

	mem := orders.NewMemoryStore()
	totals := NewDailyTotals(rdb, zaptest.NewLogger(t))

	// Add before the key exists is a no-op; the store is the source of truth.
	require.NoError(t, totals.Add(ctx, member, day, 5000))
	_, err := rdb.Get(ctx, DailyKey(member, day)).Result()
	assert.ErrorIs(t, err, redis.Nil)

	err = mem.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		got, err := totals.DailyTotal(ctx, tx, member, day)
		assert.Zero(t, got)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, totals.Add(ctx, member, day, 12000))
	err = mem.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		got, err := totals.DailyTotal(ctx, tx, member, day)
		assert.Equal(t, int64(12000), got)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, totals.Forget(ctx, member, day))
	_, err = rdb.Get(ctx, DailyKey(member, day)).Result()
	assert.ErrorIs(t, err, redis.Nil)
}
