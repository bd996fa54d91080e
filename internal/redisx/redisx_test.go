package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/poller"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()
	store := SnapshotStore{RDB: rdb}

	_, ok, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	in := poller.Snapshot{
		Orders: []orders.Order{{
			ID:       12,
			Status:   orders.StatusInProduction,
			Total:    decimal.RequireFromString("55.90"),
			MetaData: []orders.MetaData{{Key: orders.MetaScheduledAt, Value: "1715335200"}},
		}},
		FetchedAt: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
		Version:   3,
	}
	require.NoError(t, store.SaveSnapshot(ctx, in))
	assert.Equal(t, TTLSnapshot, mr.TTL(KeyOrdersSnapshot))

	out, ok, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), out.Version)
	require.Len(t, out.Orders, 1)
	assert.True(t, in.Orders[0].Total.Equal(out.Orders[0].Total))
	at, ok := out.Orders[0].ScheduledAt()
	require.True(t, ok)
	assert.Equal(t, int64(1715335200), at.Unix())

	mr.FastForward(TTLSnapshot + time.Second)
	_, ok, _ = store.LoadSnapshot(ctx)
	assert.False(t, ok)
}

func TestDenylist(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()
	d := Denylist{RDB: rdb}

	revoked, err := d.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "abc", time.Hour))
	revoked, _ = d.IsRevoked(ctx, "abc")
	assert.True(t, revoked)

	mr.FastForward(time.Hour + time.Second)
	revoked, _ = d.IsRevoked(ctx, "abc")
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "expired", 0))
	revoked, _ = d.IsRevoked(ctx, "expired")
	assert.False(t, revoked)
}

func TestMenuCache(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()
	m := MenuCache{RDB: rdb}

	_, ok, err := m.Get(ctx, "17")
	require.NoError(t, err)
	assert.False(t, ok)

	ps := []orders.Product{{ID: 1, Name: "Margherita", Price: decimal.NewFromInt(32), StockStatus: orders.InStock}}
	require.NoError(t, m.Set(ctx, "17", ps))
	require.NoError(t, m.Set(ctx, "18", ps))

	got, ok, err := m.Get(ctx, "17")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Margherita", got[0].Name)

	require.NoError(t, m.Clear(ctx))
	_, ok, _ = m.Get(ctx, "18")
	assert.False(t, ok)
}

func TestMarkOnce(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()

	first, err := MarkOnce(ctx, rdb, "dedup:x:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	again, err := MarkOnce(ctx, rdb, "dedup:x:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)
}
