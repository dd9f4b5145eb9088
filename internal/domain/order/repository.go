package order

import (
	"context"
)

// Repository 订单仓储接口
// 事务通过context传递，Lock*系列必须在事务内调用
type Repository interface {
	// Create 创建订单及明细，订单号冲突返回ErrDuplicateOrderNo
	Create(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id uint) (*Order, error)

	FindByCustomID(ctx context.Context, customID string) (*Order, error)

	// LockByID SELECT ... FOR UPDATE
	LockByID(ctx context.Context, id uint) (*Order, error)

	// LockByCustomID SELECT ... FOR UPDATE
	LockByCustomID(ctx context.Context, customID string) (*Order, error)

	// UpdateStatus 只更新状态和更新时间
	UpdateStatus(ctx context.Context, order *Order) error

	// List 按创建时间倒序分页
	List(ctx context.Context, filter ListFilter) ([]*Order, int64, error)
}

// ListFilter UserID为0表示不按用户过滤（管理员视角）
type ListFilter struct {
	UserID   uint
	Status   OrderStatus
	Page     int
	PageSize int
}
