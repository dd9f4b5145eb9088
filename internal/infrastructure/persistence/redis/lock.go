package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/ebookstore/internal/application"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 只给自己持有的锁续期
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker 基于SET NX PX的互斥锁
// 持有期间每ttl/3续期一次，执行时间可以超过ttl；
// 持有者崩溃时续期停止，锁随TTL自动过期
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "获取分布式锁失败")
	}
	if !ok {
		return nil, application.ErrLockHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, ttl, stop, done)

	var once sync.Once
	release := func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return apperrors.Wrap(err, "释放分布式锁失败")
		}
		return nil
	}
	return release, nil
}

// keepAlive 锁已被他人持有或客户端关闭时退出
func (l *Locker) keepAlive(key, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
			cancel()
			if errors.Is(err, redis.ErrClosed) || (err == nil && renewed == 0) {
				return
			}
		}
	}
}
