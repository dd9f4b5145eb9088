package payout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/ebookstore/internal/domain/payout"
)

// ConfigDTO 分账配置输出
type ConfigDTO struct {
	ID             uint            `json:"id"`
	Name           string          `json:"name"`
	Destination    string          `json:"destination"`
	Percentage     decimal.Decimal `json:"payout_percentage"`
	Frequency      string          `json:"frequency"`
	IsActive       bool            `json:"is_active"`
	LastPayoutDate *time.Time      `json:"last_payout_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toConfigDTO(c *payout.Config) *ConfigDTO {
	return &ConfigDTO{
		ID:             c.ID,
		Name:           c.Name,
		Destination:    c.Destination,
		Percentage:     c.Percentage,
		Frequency:      string(c.Frequency),
		IsActive:       c.IsActive,
		LastPayoutDate: c.LastPayoutDate,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// WithdrawalDTO 单次分账结果
type WithdrawalDTO struct {
	Reference     string    `json:"reference"`
	ConfigID      uint      `json:"config_id"`
	Amount        int64     `json:"amount"`
	Fee           int64     `json:"fee"`
	BalanceBefore int64     `json:"balance_before"`
	Status        string    `json:"status"`
	TransferCode  string    `json:"transfer_code"`
	ExecutedAt    time.Time `json:"executed_at"`
}

func toWithdrawalDTO(r *payout.WithdrawalResult) *WithdrawalDTO {
	return &WithdrawalDTO{
		Reference:     r.Reference,
		ConfigID:      r.ConfigID,
		Amount:        r.Amount,
		Fee:           r.Fee,
		BalanceBefore: r.BalanceBefore,
		Status:        string(r.Status),
		TransferCode:  r.TransferCode,
		ExecutedAt:    r.ExecutedAt,
	}
}
