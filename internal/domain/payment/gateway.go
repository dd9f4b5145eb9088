package payment

import (
	"context"
	"time"
)

// Gateway 支付服务商
// 实现负责超时、熔断与重试；传输层失败统一返回errors.ErrExternalService，
// 超时不代表支付失败，调用方不能据此修改订单状态
type Gateway interface {
	InitializeTransaction(ctx context.Context, req InitRequest) (*Session, error)

	VerifyTransaction(ctx context.Context, reference string) (*Verification, error)
}

// EventRecord 已处理的回调事件
type EventRecord struct {
	EventID     string
	Reference   string
	Type        string
	Success     bool
	ProcessedAt time.Time
}

// EventRepository 回调事件去重表
type EventRepository interface {
	// Record 插入事件，事件ID已存在返回inserted=false
	Record(ctx context.Context, rec *EventRecord) (inserted bool, err error)
}
