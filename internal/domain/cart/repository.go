package cart

import (
	"context"
	"time"
)

// Repository 登录用户购物车（MySQL）
type Repository interface {
	// Get 不存在时返回Version为0的空购物车
	Get(ctx context.Context, userID uint) (*Cart, error)

	// Lock 在事务内锁定购物车行，不存在时先创建
	Lock(ctx context.Context, userID uint) (*Cart, error)

	// Save 覆盖条目并写入Version
	Save(ctx context.Context, cart *Cart) error

	// Clear 清空条目并递增Version，购物车不存在时为空操作
	Clear(ctx context.Context, userID uint) error

	// MarkMerged 在合并事务内登记游客购物车已并入，
	// 同一guestID已以相同指纹登记过时返回false
	MarkMerged(ctx context.Context, guestID string, userID uint, fingerprint string) (bool, error)
}

// GuestStore 游客购物车（Redis）
type GuestStore interface {
	// Get 不存在时返回空map
	Get(ctx context.Context, guestID string) (map[uint]int, error)

	// Replace 整体覆盖并刷新过期时间，items为空时删除
	Replace(ctx context.Context, guestID string, items []Item, ttl time.Duration) error

	Delete(ctx context.Context, guestID string) error
}
