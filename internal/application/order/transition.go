package order

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/pkg/metrics"
)

// Transitioner 订单状态流转
// 支付回调、主动查询、管理员操作、结账补偿共用同一条路径，
// 保证"只从待支付流转一次、副作用只执行一次"
type Transitioner struct {
	orderRepo order.Repository
	cartRepo  cart.Repository
	txManager application.TxManager
	publisher application.EventPublisher
	logger    zerolog.Logger
}

// NewTransitioner 创建状态流转服务
func NewTransitioner(
	orderRepo order.Repository,
	cartRepo cart.Repository,
	txManager application.TxManager,
	publisher application.EventPublisher,
	logger zerolog.Logger,
) *Transitioner {
	return &Transitioner{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With().Str("component", "order_transition").Logger(),
	}
}

// TransitionRequest OrderID与CustomID二选一
type TransitionRequest struct {
	OrderID  uint
	CustomID string
	Target   order.OrderStatus
	Source   order.TransitionSource
}

// TransitionResult Applied为false表示订单已是终态，未做任何修改
type TransitionResult struct {
	Order   *OrderDTO `json:"order"`
	Applied bool      `json:"applied"`
}

// Execute 在独立事务中加锁并流转，提交后发布事件
func (t *Transitioner) Execute(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if !req.Target.IsTerminal() {
		return nil, order.ErrInvalidStatusTransition
	}

	var (
		locked  *order.Order
		applied bool
	)
	err := t.txManager.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		if req.CustomID != "" {
			locked, err = t.orderRepo.LockByCustomID(txCtx, req.CustomID)
		} else {
			locked, err = t.orderRepo.LockByID(txCtx, req.OrderID)
		}
		if err != nil {
			return err
		}

		applied, err = t.ApplyLocked(txCtx, locked, req.Target, req.Source)
		return err
	})
	if err != nil {
		return nil, err
	}

	if applied {
		t.AfterCommit(ctx, locked, req.Source)
	}
	return &TransitionResult{Order: ToDTO(locked), Applied: applied}, nil
}

// ApplyLocked 对已加锁的订单执行流转，必须在事务内调用
// 转为已完成时在同一事务内清空买家购物车
func (t *Transitioner) ApplyLocked(txCtx context.Context, o *order.Order, target order.OrderStatus, source order.TransitionSource) (bool, error) {
	from := o.Status
	applied, err := o.TransitionTo(target)
	if err != nil || !applied {
		if err == nil {
			t.logger.Info().
				Str("custom_id", o.CustomID).
				Str("status", from.String()).
				Str("target", target.String()).
				Str("source", string(source)).
				Msg("订单已是终态，忽略重复流转")
		}
		return false, err
	}

	if err := t.orderRepo.UpdateStatus(txCtx, o); err != nil {
		return false, err
	}

	if target == order.OrderStatusCompleted {
		if err := t.cartRepo.Clear(txCtx, o.UserID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// AfterCommit 提交后调用：打点并发布order.completed / order.cancelled
func (t *Transitioner) AfterCommit(ctx context.Context, o *order.Order, source order.TransitionSource) {
	metrics.IncCounterVec(metrics.OrderTransitionsTotal, map[string]string{
		"to":     o.Status.String(),
		"source": string(source),
	})

	routingKey := application.EventOrderCancelled
	if o.Status == order.OrderStatusCompleted {
		routingKey = application.EventOrderCompleted
	}

	event := application.OrderEvent{
		OrderID:    o.ID,
		CustomID:   o.CustomID,
		UserID:     o.UserID,
		Total:      o.Total,
		Status:     o.Status.String(),
		Source:     string(source),
		OccurredAt: time.Now(),
	}
	if err := t.publisher.Publish(ctx, routingKey, event); err != nil {
		t.logger.Warn().Err(err).Str("custom_id", o.CustomID).Str("routing_key", routingKey).Msg("发布订单事件失败")
	}

	t.logger.Info().
		Str("custom_id", o.CustomID).
		Str("status", o.Status.String()).
		Str("source", string(source)).
		Msg("订单状态已变更")
}
