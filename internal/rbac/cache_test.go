package rbac

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *MenuCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMenuCache(client, time.Minute)
}

func TestMenuCacheFetchPopulatesOnce(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.MenuKey(ctx, []int64{1, 2})
	require.NoError(t, err)

	loads := 0
	loader := func(context.Context) ([]MenuNode, error) {
		loads++
		return []MenuNode{{ID: 1, Name: "Dashboard", Permissions: []string{"view"}, Children: []MenuNode{}}}, nil
	}

	first, err := cache.FetchMenu(ctx, key, loader)
	require.NoError(t, err)
	second, err := cache.FetchMenu(ctx, key, loader)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
}

func TestMenuCacheKeyVariesByRoleSet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	a, err := cache.MenuKey(ctx, []int64{1})
	require.NoError(t, err)
	b, err := cache.MenuKey(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMenuCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.MenuKey(ctx, []int64{1})
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	after, err := cache.MenuKey(ctx, []int64{1})
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestMenuCacheNilPassthrough(t *testing.T) {
	var cache *MenuCache
	ctx := context.Background()

	key, err := cache.MenuKey(ctx, []int64{1})
	require.NoError(t, err)

	loads := 0
	menu, err := cache.FetchMenu(ctx, key, func(context.Context) ([]MenuNode, error) {
		loads++
		return []MenuNode{}, nil
	})
	require.NoError(t, err)
	assert.Empty(t, menu)

	_, err = cache.FetchMenu(ctx, key, func(context.Context) ([]MenuNode, error) {
		loads++
		return []MenuNode{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, loads)

	require.NoError(t, cache.Bump(ctx))
}
