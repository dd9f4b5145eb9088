package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ConfigRepository 分账配置
type ConfigRepository interface {
	Create(ctx context.Context, cfg *Config) error

	Update(ctx context.Context, cfg *Config) error

	// FindByID 不存在返回ErrConfigNotFound
	FindByID(ctx context.Context, id uint) (*Config, error)

	List(ctx context.Context, activeOnly bool) ([]*Config, error)

	// SumActivePercentage 启用配置的比例合计，excludeID非0时排除该配置
	SumActivePercentage(ctx context.Context, excludeID uint) (decimal.Decimal, error)

	// LockGuard 锁定单行守护记录，串行化所有配置写操作，必须在事务内调用
	LockGuard(ctx context.Context) error

	MarkPaid(ctx context.Context, id uint, at time.Time) error
}

// RecordRepository 分账执行记录
type RecordRepository interface {
	Create(ctx context.Context, rec *Record) error

	Update(ctx context.Context, rec *Record) error

	ListByConfig(ctx context.Context, configID uint, limit int) ([]*Record, error)
}

// TransferRequest 向收款方转账
type TransferRequest struct {
	Reference   string
	Amount      int64
	Destination string
	Reason      string
}

// TransferResult 服务商受理结果
type TransferResult struct {
	TransferCode string
	Status       string
}

// Wallet 结算钱包（支付服务商侧余额）
type Wallet interface {
	ID() string

	Balance(ctx context.Context) (int64, error)

	// Transfer 同一Reference重复提交由服务商保证幂等
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}
