// Package application 用例层共享的端口定义
// 各子包的用例只依赖这里的接口，基础设施在cmd中注入
package application

import (
	"context"
	"errors"
	"time"

	"github.com/xiebiao/ebookstore/internal/domain/user"
)

// TxManager 事务管理器
// fn内通过ctx拿到的Repository都在同一事务中执行，fn返回error即回滚
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher 领域事件发布
// 只在事务提交之后调用，发布失败只记录日志，不影响主流程
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// Locker 分布式互斥锁
type Locker interface {
	// Acquire 获取锁，已被占用时返回ErrLockHeld
	// release只释放自己持有的锁（按token比较）
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// ErrLockHeld 锁已被其他执行者持有
var ErrLockHeld = errors.New("lock is held by another owner")

// 领域事件RoutingKey
const (
	EventOrderCreated   = "order.created"
	EventOrderCompleted = "order.completed"
	EventOrderCancelled = "order.cancelled"
	EventPayoutExecuted = "payout.executed"
)

// OrderEvent 订单事件载荷
type OrderEvent struct {
	OrderID    uint      `json:"order_id"`
	CustomID   string    `json:"custom_id"`
	UserID     uint      `json:"user_id"`
	Total      int64     `json:"total"`
	Status     string    `json:"status"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PayoutEvent 分账事件载荷
type PayoutEvent struct {
	Reference    string    `json:"reference"`
	ConfigID     uint      `json:"config_id"`
	Amount       int64     `json:"amount"`
	Fee          int64     `json:"fee"`
	TransferCode string    `json:"transfer_code"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Requester 发起请求的身份
type Requester struct {
	UserID uint
	Role   user.Role
}

// IsAdmin 是否管理员
func (r Requester) IsAdmin() bool {
	return r.Role == user.RoleAdmin
}
