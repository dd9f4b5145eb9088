package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const orderNoPrefix = "ORD"

// MonthKey 序号按月分段，YYYYMM
func MonthKey(t time.Time) string {
	return t.Format("200601")
}

// FormatOrderNo ORD-<YYYYMM>-<NNNN>
// 序号至少4位，补零；超过9999后自然变宽
func FormatOrderNo(monthKey string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", orderNoPrefix, monthKey, seq)
}

// ParseSequence 从订单号中取出月份和序号
func ParseSequence(customID string) (monthKey string, seq int64, err error) {
	parts := strings.Split(customID, "-")
	if len(parts) != 3 || parts[0] != orderNoPrefix || len(parts[1]) != 6 || len(parts[2]) < 4 {
		return "", 0, ErrInvalidOrderNo
	}
	if _, err := time.Parse("200601", parts[1]); err != nil {
		return "", 0, ErrInvalidOrderNo
	}
	seq, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return "", 0, ErrInvalidOrderNo
	}
	return parts[1], seq, nil
}

// Sequencer 按月递增的序号发生器
// 实现必须在调用方事务内原子递增，事务回滚则序号也回滚
type Sequencer interface {
	Next(ctx context.Context, monthKey string) (int64, error)

	// Reconcile 把计数器抬到该月已存在的最大序号，不会回退
	Reconcile(ctx context.Context, monthKey string) error
}
