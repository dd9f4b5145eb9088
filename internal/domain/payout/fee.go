package payout

import "sort"

// FeeBand 金额不超过UpTo时收取Fee
type FeeBand struct {
	UpTo int64
	Fee  int64
}

// FeeSchedule 转账手续费档位
// 档位按UpTo升序，超过最后一档收取TopFee
type FeeSchedule struct {
	Bands  []FeeBand
	TopFee int64
}

// NewFeeSchedule 按UpTo排序后构造
func NewFeeSchedule(bands []FeeBand, topFee int64) FeeSchedule {
	sorted := append([]FeeBand(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpTo < sorted[j].UpTo })
	return FeeSchedule{Bands: sorted, TopFee: topFee}
}

// Fee 计算手续费
func (s FeeSchedule) Fee(amount int64) int64 {
	for _, band := range s.Bands {
		if amount <= band.UpTo {
			return band.Fee
		}
	}
	return s.TopFee
}
