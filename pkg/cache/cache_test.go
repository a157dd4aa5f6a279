package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolMeta struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Total string `json:"total"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	var got poolMeta
	assert.ErrorIs(t, c.Get(ctx, "pool:1", &got), ErrMiss)

	want := poolMeta{ID: 1, Name: "seed", Total: "1000"}
	require.NoError(t, c.Set(ctx, "pool:1", want, time.Minute))
	require.NoError(t, c.Get(ctx, "pool:1", &got))
	assert.Equal(t, want, got)

	// 存的是副本, 修改原值不影响缓存
	want.Name = "changed"
	require.NoError(t, c.Get(ctx, "pool:1", &got))
	assert.Equal(t, "seed", got.Name)

	require.NoError(t, c.Delete(ctx, "pool:1"))
	assert.ErrorIs(t, c.Get(ctx, "pool:1", &got), ErrMiss)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set(ctx, "k", 1, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrMiss)
}

func TestMultiLevelCache(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(time.Minute, time.Minute)
	remote := NewMemoryCache(time.Minute, time.Minute)
	m := NewMultiLevelCache(local, remote)

	require.NoError(t, m.Set(ctx, "pool:2", poolMeta{ID: 2}, time.Minute))

	var got poolMeta
	require.NoError(t, local.Get(ctx, "pool:2", &got))
	require.NoError(t, remote.Get(ctx, "pool:2", &got))

	// L1 丢失后从 L2 读取并回写
	require.NoError(t, local.Delete(ctx, "pool:2"))
	got = poolMeta{}
	require.NoError(t, m.Get(ctx, "pool:2", &got))
	assert.Equal(t, uint64(2), got.ID)
	got = poolMeta{}
	require.NoError(t, local.Get(ctx, "pool:2", &got))
	assert.Equal(t, uint64(2), got.ID)

	require.NoError(t, m.Delete(ctx, "pool:2"))
	assert.ErrorIs(t, m.Get(ctx, "pool:2", &got), ErrMiss)
}
