package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiebiao/ebookstore/internal/domain/cart"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// GuestCartStore 游客购物车
// guest_cart:{guestID} 是一个Hash，field为图书ID，value为数量
type GuestCartStore struct {
	client *redis.Client
}

func NewGuestCartStore(client *redis.Client) *GuestCartStore {
	return &GuestCartStore{client: client}
}

func (s *GuestCartStore) Get(ctx context.Context, guestID string) (map[uint]int, error) {
	fields, err := s.client.HGetAll(ctx, guestCartKey(guestID)).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "读取游客购物车失败")
	}

	items := make(map[uint]int, len(fields))
	for field, value := range fields {
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil || qty < 1 {
			continue
		}
		items[uint(id)] = qty
	}
	return items, nil
}

// Replace DEL+HSET+PEXPIRE在一个MULTI里执行
func (s *GuestCartStore) Replace(ctx context.Context, guestID string, items []cart.Item, ttl time.Duration) error {
	key := guestCartKey(guestID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(items) > 0 {
		values := make([]interface{}, 0, len(items)*2)
		for _, item := range items {
			values = append(values, strconv.FormatUint(uint64(item.BookID), 10), item.Quantity)
		}
		pipe.HSet(ctx, key, values...)
		pipe.PExpire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, "保存游客购物车失败")
	}
	return nil
}

func (s *GuestCartStore) Delete(ctx context.Context, guestID string) error {
	if err := s.client.Del(ctx, guestCartKey(guestID)).Err(); err != nil {
		return apperrors.Wrap(err, "删除游客购物车失败")
	}
	return nil
}

func guestCartKey(guestID string) string {
	return "guest_cart:" + guestID
}
