package order

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/pkg/metrics"
	"github.com/xiebiao/ebookstore/pkg/tracing"
)

// maxCreateAttempts 订单号唯一索引冲突时的最大尝试次数
const maxCreateAttempts = 3

// CreateOrderUseCase 创建订单用例
// 价格取目录当前价格，客户端提交的价格一律不采信
type CreateOrderUseCase struct {
	orderRepo order.Repository
	catalog   book.Catalog
	sequencer order.Sequencer
	txManager application.TxManager
	publisher application.EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCreateOrderUseCase 创建下单用例
func NewCreateOrderUseCase(
	orderRepo order.Repository,
	catalog book.Catalog,
	sequencer order.Sequencer,
	txManager application.TxManager,
	publisher application.EventPublisher,
	logger zerolog.Logger,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		orderRepo: orderRepo,
		catalog:   catalog,
		sequencer: sequencer,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With().Str("component", "create_order").Logger(),
		now:       time.Now,
	}
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	UserID uint
	Items  []CreateOrderItem
}

// CreateOrderItem 下单条目
type CreateOrderItem struct {
	BookID   uint
	Quantity int
}

// Execute 执行下单
//  1. 校验条目，同一本书的多个条目合并
//  2. 按目录当前价格生成明细快照
//  3. 事务内取本月序号、生成订单号、写入订单
//  4. 订单号冲突时退避重试，提交后发布order.created
func (uc *CreateOrderUseCase) Execute(ctx context.Context, req CreateOrderRequest) (*OrderDTO, error) {
	ctx, span := tracing.StartSpan(ctx, "order", "CreateOrder")
	defer span.End()

	start := time.Now()
	created, err := uc.execute(ctx, req)
	metrics.ObserveHistogram(metrics.OrderCreationDuration, time.Since(start).Seconds())
	if err != nil {
		metrics.IncCounter(metrics.OrdersFailedTotal)
		tracing.RecordError(span, err)
		return nil, err
	}
	metrics.IncCounter(metrics.OrdersCreatedTotal)

	uc.publish(ctx, created)
	return ToDTO(created), nil
}

func (uc *CreateOrderUseCase) execute(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	quantities, ids, err := coalesce(req.Items)
	if err != nil {
		return nil, err
	}

	books, err := uc.catalog.MustResolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]order.OrderItem, 0, len(ids))
	for _, id := range ids {
		b := books[id]
		items = append(items, order.OrderItem{
			BookID:   b.ID,
			Title:    b.Title,
			Author:   b.Author,
			CoverURL: b.CoverURL,
			Quantity: quantities[id],
			Price:    b.Price,
		})
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newConflictBackOff(), maxCreateAttempts-1), ctx)

	var created *order.Order
	op := func() error {
		monthKey := order.MonthKey(uc.now())
		o, err := uc.createOnce(ctx, monthKey, req.UserID, items)
		if err == nil {
			created = o
			return nil
		}
		if !errors.Is(err, order.ErrDuplicateOrderNo) {
			return backoff.Permanent(err)
		}

		metrics.IncCounter(metrics.OrderSequenceConflicts)
		uc.logger.Warn().Err(err).Str("month", monthKey).Uint("user_id", req.UserID).Msg("订单号冲突，校准序号后重试")
		// 计数器落后于已有订单号时（数据迁移、手工补单），先对齐再重试
		if rerr := uc.sequencer.Reconcile(ctx, monthKey); rerr != nil {
			uc.logger.Error().Err(rerr).Str("month", monthKey).Msg("校准订单序号失败")
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return created, nil
}

func (uc *CreateOrderUseCase) createOnce(ctx context.Context, monthKey string, userID uint, items []order.OrderItem) (*order.Order, error) {
	var created *order.Order
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		seq, err := uc.sequencer.Next(txCtx, monthKey)
		if err != nil {
			return err
		}

		// 明细切片在重试间复用，拷贝一份避免仓储回写ID污染下一次尝试
		o, err := order.NewOrder(order.FormatOrderNo(monthKey, seq), userID, append([]order.OrderItem(nil), items...))
		if err != nil {
			return err
		}
		if err := uc.orderRepo.Create(txCtx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	return created, err
}

func (uc *CreateOrderUseCase) publish(ctx context.Context, o *order.Order) {
	event := application.OrderEvent{
		OrderID:    o.ID,
		CustomID:   o.CustomID,
		UserID:     o.UserID,
		Total:      o.Total,
		Status:     o.Status.String(),
		OccurredAt: o.CreatedAt,
	}
	if err := uc.publisher.Publish(ctx, application.EventOrderCreated, event); err != nil {
		uc.logger.Warn().Err(err).Str("custom_id", o.CustomID).Msg("发布order.created失败")
	}
}

// coalesce 校验并合并重复条目，返回数量表与保持首次出现顺序的ID列表
func coalesce(items []CreateOrderItem) (map[uint]int, []uint, error) {
	if len(items) == 0 {
		return nil, nil, order.ErrInvalidOrderItems
	}

	quantities := make(map[uint]int, len(items))
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, nil, order.ErrInvalidQuantity
		}
		if item.BookID == 0 {
			return nil, nil, order.ErrInvalidOrderItems.WithMessage("图书ID不能为空")
		}
		if _, seen := quantities[item.BookID]; !seen {
			ids = append(ids, item.BookID)
		}
		quantities[item.BookID] += item.Quantity
	}
	return quantities, ids, nil
}

func newConflictBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}
