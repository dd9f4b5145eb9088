package payout

import (
	"fmt"
	"time"
)

// RecordStatus 分账记录状态
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordSucceeded RecordStatus = "succeeded"
	RecordFailed    RecordStatus = "failed"
)

// Record 一次分账执行
// Reference在首次提交前落库，同一次执行的重试复用它作为服务商幂等键
type Record struct {
	ID            uint
	Reference     string
	ConfigID      uint
	Amount        int64
	Fee           int64
	BalanceBefore int64
	Status        RecordStatus
	TransferCode  string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewReference PAYOUT-<configId>-<unixMillis>
func NewReference(configID uint, now time.Time) string {
	return fmt.Sprintf("PAYOUT-%d-%d", configID, now.UnixMilli())
}

// Succeed 标记成功
func (r *Record) Succeed(transferCode string) {
	r.Status = RecordSucceeded
	r.TransferCode = transferCode
	r.FailureReason = ""
	r.UpdatedAt = time.Now()
}

// Fail 标记失败
func (r *Record) Fail(reason string) {
	r.Status = RecordFailed
	r.FailureReason = reason
	r.UpdatedAt = time.Now()
}

// WithdrawalResult processPayout的返回值
type WithdrawalResult struct {
	Reference     string
	ConfigID      uint
	Amount        int64
	Fee           int64
	BalanceBefore int64
	Status        RecordStatus
	TransferCode  string
	ExecutedAt    time.Time
}

// ResultOf 由记录生成返回值
func ResultOf(r *Record, executedAt time.Time) *WithdrawalResult {
	return &WithdrawalResult{
		Reference:     r.Reference,
		ConfigID:      r.ConfigID,
		Amount:        r.Amount,
		Fee:           r.Fee,
		BalanceBefore: r.BalanceBefore,
		Status:        r.Status,
		TransferCode:  r.TransferCode,
		ExecutedAt:    executedAt,
	}
}
