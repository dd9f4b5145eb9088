package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/infrastructure/config"
)

var (
	sharedOnce   sync.Once
	sharedClient *redis.Client
	sharedErr    error
)

// Shared 进程内共享的Redis客户端
func Shared(cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	sharedOnce.Do(func() {
		sharedClient, sharedErr = NewClient(cfg, log)
	})
	return sharedClient, sharedErr
}

// NewClient 创建Redis客户端并测试连接
func NewClient(cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+cfg.Redis.ReadTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	log.Info().Str("addr", cfg.Redis.Addr()).Int("db", cfg.Redis.DB).Msg("Redis连接成功")
	return client, nil
}
