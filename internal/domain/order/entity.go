package order

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus 订单状态
// Pending → Completed | Cancelled，后两者为终态
type OrderStatus int

const (
	OrderStatusPending   OrderStatus = 1 // 待支付
	OrderStatusCompleted OrderStatus = 2 // 已完成（支付成功）
	OrderStatusCancelled OrderStatus = 3 // 已取消
)

// String 实现Stringer接口(日志、事件、接口输出都用英文小写)
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusCompleted:
		return "completed"
	case OrderStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus 解析状态名，大小写不敏感
func ParseStatus(s string) (OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return OrderStatusPending, nil
	case "completed":
		return OrderStatusCompleted, nil
	case "cancelled", "canceled":
		return OrderStatusCancelled, nil
	}
	return 0, ErrInvalidStatus.WithMessage(fmt.Sprintf("未知的订单状态: %s", s))
}

// IsTerminal 是否终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// TransitionSource 状态变更来源
type TransitionSource string

const (
	SourceWebhook  TransitionSource = "webhook"  // 支付服务商签名回调
	SourceVerify   TransitionSource = "verify"   // 客户端提示后服务端主动查询
	SourceAdmin    TransitionSource = "admin"    // 管理员手工操作
	SourceCheckout TransitionSource = "checkout" // 结账Saga补偿
)

// Order 订单实体(聚合根)
// Total在创建时按当时目录价格计算一次，之后不再重算
type Order struct {
	ID        uint
	CustomID  string // ORD-YYYYMM-NNNN，创建时分配，不可修改
	UserID    uint
	Total     int64
	Status    OrderStatus
	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem 订单明细(下单时的图书快照)
type OrderItem struct {
	ID          uint
	OrderID     uint
	BookID      uint
	Title       string
	Author      string
	CoverURL    string
	Quantity    int
	Price       int64 // 下单时单价
	DownloadURL string
}

// Subtotal 小计
func (i OrderItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// NewOrder 创建待支付订单，Total由明细计算
func NewOrder(customID string, userID uint, items []OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrInvalidOrderItems
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}

	now := time.Now()
	o := &Order{
		CustomID:  customID,
		UserID:    userID,
		Status:    OrderStatusPending,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.Total = o.CalculateTotal()
	return o, nil
}

// CanTransitionTo 只有待支付订单可以流转
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	return o.Status == OrderStatusPending && target.IsTerminal()
}

// TransitionTo 状态流转
// 已是终态时不报错，返回applied=false，调用方据此跳过副作用
func (o *Order) TransitionTo(target OrderStatus) (applied bool, err error) {
	if !target.IsTerminal() {
		return false, ErrInvalidStatusTransition
	}
	if o.Status.IsTerminal() {
		return false, nil
	}
	o.Status = target
	o.UpdatedAt = time.Now()
	return true, nil
}

// CalculateTotal Σ 单价 × 数量
func (o *Order) CalculateTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// IsOwnedBy 检查订单是否属于指定用户
func (o *Order) IsOwnedBy(userID uint) bool {
	return o.UserID == userID
}

// Item 查找明细，不存在返回false
func (o *Order) Item(bookID uint) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.BookID == bookID {
			return item, true
		}
	}
	return OrderItem{}, false
}
