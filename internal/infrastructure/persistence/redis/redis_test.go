package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
)

// setupRedis 启动Redis容器，-short模式下跳过
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("-short模式跳过Redis容器测试")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisAdapters(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("游客购物车整体覆盖", func(t *testing.T) {
		store := NewGuestCartStore(client)

		require.NoError(t, store.Replace(ctx, "g1", []cart.Item{{BookID: 1, Quantity: 2}, {BookID: 3, Quantity: 1}}, time.Hour))
		require.NoError(t, store.Replace(ctx, "g1", []cart.Item{{BookID: 3, Quantity: 4}}, time.Hour))

		items, err := store.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, map[uint]int{3: 4}, items)

		ttl, err := client.PTTL(ctx, "guest_cart:g1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute, "覆盖后应刷新过期时间")
	})

	t.Run("游客购物车清空即删除", func(t *testing.T) {
		store := NewGuestCartStore(client)

		require.NoError(t, store.Replace(ctx, "g2", []cart.Item{{BookID: 1, Quantity: 1}}, time.Hour))
		require.NoError(t, store.Replace(ctx, "g2", nil, time.Hour))

		exists, err := client.Exists(ctx, "guest_cart:g2").Result()
		require.NoError(t, err)
		assert.Zero(t, exists)

		items, err := store.Get(ctx, "g2")
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("锁互斥且只释放自己的锁", func(t *testing.T) {
		locker := NewLocker(client)

		release, err := locker.Acquire(ctx, "lock:a", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "lock:a", time.Minute)
		assert.ErrorIs(t, err, application.ErrLockHeld)

		// 模拟锁过期后被他人持有
		require.NoError(t, client.Set(ctx, "lock:a", "someone-else", time.Minute).Err())
		require.NoError(t, release(ctx))
		val, err := client.Get(ctx, "lock:a").Result()
		require.NoError(t, err)
		assert.Equal(t, "someone-else", val, "不能释放他人的锁")
	})

	t.Run("持有期间自动续期", func(t *testing.T) {
		locker := NewLocker(client)

		release, err := locker.Acquire(ctx, "lock:long", 300*time.Millisecond)
		require.NoError(t, err)

		// 执行时间超过TTL，锁仍然有效
		time.Sleep(time.Second)
		_, err = locker.Acquire(ctx, "lock:long", 300*time.Millisecond)
		assert.ErrorIs(t, err, application.ErrLockHeld, "续期后的锁不应被他人获取")
		ttl, err := client.PTTL(ctx, "lock:long").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.NoError(t, release(ctx))
		require.NoError(t, release(ctx), "重复释放是空操作")
		exists, err := client.Exists(ctx, "lock:long").Result()
		require.NoError(t, err)
		assert.Zero(t, exists)
	})

	t.Run("锁被他人持有后停止续期", func(t *testing.T) {
		locker := NewLocker(client)

		release, err := locker.Acquire(ctx, "lock:lost", 300*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, client.Set(ctx, "lock:lost", "someone-else", 300*time.Millisecond).Err())

		time.Sleep(time.Second)
		exists, err := client.Exists(ctx, "lock:lost").Result()
		require.NoError(t, err)
		assert.Zero(t, exists, "不应续期他人的锁")
		require.NoError(t, release(ctx))
	})

	t.Run("并发抢锁只有一个成功", func(t *testing.T) {
		locker := NewLocker(client)

		var (
			wg      sync.WaitGroup
			winners int32
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := locker.Acquire(ctx, "lock:race", time.Minute); err == nil {
					atomic.AddInt32(&winners, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners)
	})

	t.Run("会话与黑名单", func(t *testing.T) {
		sessions := NewSessionStore(client)

		require.NoError(t, sessions.SaveSession(ctx, 7, map[string]interface{}{"email": "a@b.c"}, time.Hour))
		data, err := sessions.GetSession(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", data["email"])

		require.NoError(t, sessions.DeleteSession(ctx, 7))
		_, err = sessions.GetSession(ctx, 7)
		assert.Error(t, err)

		require.NoError(t, sessions.AddToBlacklist(ctx, "tok", time.Hour))
		blocked, err := sessions.IsInBlacklist(ctx, "tok")
		require.NoError(t, err)
		assert.True(t, blocked)

		blocked, err = sessions.IsInBlacklist(ctx, "other")
		require.NoError(t, err)
		assert.False(t, blocked)
	})
}
