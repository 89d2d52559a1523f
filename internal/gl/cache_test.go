package gl

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestAccountCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewAccountCache(client, time.Minute)
	ctx := context.Background()

	_, ok := cache.GetAccounts(ctx)
	require.False(t, ok)

	cache.SetAccounts(ctx, []Account{
		{ID: 1, Name: "Cash", RootType: RootTypeAsset},
		{ID: 2, Name: "Sales", RootType: RootTypeIncome},
	})

	got, ok := cache.GetAccounts(ctx)
	require.True(t, ok)
	require.Len(t, got, 2)
	require.Equal(t, "Cash", got[0].Name)
	require.Equal(t, RootTypeIncome, got[1].RootType)

	cache.Invalidate(ctx)
	_, ok = cache.GetAccounts(ctx)
	require.False(t, ok)
}

func TestAccountCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewAccountCache(client, time.Minute)
	ctx := context.Background()

	cache.SetAccounts(ctx, []Account{{ID: 1, Name: "Cash", RootType: RootTypeAsset}})
	mr.FastForward(2 * time.Minute)

	_, ok := cache.GetAccounts(ctx)
	require.False(t, ok)
}

func TestNilAccountCacheIsInert(t *testing.T) {
	var cache *AccountCache
	ctx := context.Background()

	cache.SetAccounts(ctx, []Account{{ID: 1, Name: "Cash"}})
	_, ok := cache.GetAccounts(ctx)
	require.False(t, ok)
	cache.Invalidate(ctx)
}
