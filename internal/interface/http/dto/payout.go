package dto

import "github.com/shopspring/decimal"

// CreatePayoutConfigRequest 比例范围和合计上限由领域层校验
type CreatePayoutConfigRequest struct {
	Name        string          `json:"name" binding:"required,max=100"`
	Destination string          `json:"destination" binding:"required,max=100"`
	Percentage  decimal.Decimal `json:"payout_percentage"`
	Frequency   string          `json:"frequency" binding:"required"`
}

// UpdatePayoutConfigRequest 省略的字段保持不变
type UpdatePayoutConfigRequest struct {
	Name        *string          `json:"name" binding:"omitempty,max=100"`
	Destination *string          `json:"destination" binding:"omitempty,max=100"`
	Percentage  *decimal.Decimal `json:"payout_percentage"`
	Frequency   *string          `json:"frequency"`
	IsActive    *bool            `json:"is_active"`
}
