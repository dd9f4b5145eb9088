package payout

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency 分账频率
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency 大小写不敏感
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return f, nil
	}
	return "", ErrInvalidFrequency.WithMessage(fmt.Sprintf("不支持的分账频率: %s", s))
}

// Next 上次分账后下一次到期的时间，月度按自然月推进
func (f Frequency) Next(last time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return last.Add(24 * time.Hour)
	case FrequencyWeekly:
		return last.Add(7 * 24 * time.Hour)
	default:
		return last.AddDate(0, 1, 0)
	}
}

var (
	hundred       = decimal.NewFromInt(100)
	maxPercentage = hundred
)

// Config 分账配置
type Config struct {
	ID          uint
	Name        string
	Destination string // 收款方手机号或服务商recipient code
	Percentage  decimal.Decimal
	Frequency   Frequency
	IsActive    bool
	// LastPayoutDate 从未分账时为nil
	LastPayoutDate *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewConfig 创建分账配置，默认启用
func NewConfig(name, destination string, percentage decimal.Decimal, frequency Frequency) (*Config, error) {
	c := &Config{
		Name:        strings.TrimSpace(name),
		Destination: strings.TrimSpace(destination),
		Percentage:  percentage,
		Frequency:   frequency,
		IsActive:    true,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	return c, nil
}

// Validate 字段级校验，比例合计在应用层加锁后校验
func (c *Config) Validate() error {
	if c.Name == "" || c.Destination == "" {
		return ErrInvalidConfig.WithMessage("名称和收款方不能为空")
	}
	if _, err := ParseFrequency(string(c.Frequency)); err != nil {
		return err
	}
	return ValidatePercentage(c.Percentage)
}

// IsDue 从未分账，或距上次分账已满一个周期
func (c *Config) IsDue(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.LastPayoutDate == nil {
		return true
	}
	return !c.Frequency.Next(*c.LastPayoutDate).After(now)
}

// ValidatePercentage 0 <= p <= 100，最多两位小数
// 0%的配置保留收款方但不会分到金额
func ValidatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(maxPercentage) {
		return ErrInvalidPercentage
	}
	if !p.Equal(p.Truncate(2)) {
		return ErrInvalidPercentage.WithMessage("分账比例最多保留两位小数")
	}
	return nil
}

// CheckActiveTotal 启用配置的比例合计不得超过100
// others是除当前配置以外所有启用配置的合计
func CheckActiveTotal(others, candidate decimal.Decimal) error {
	total := others.Add(candidate)
	if total.GreaterThan(maxPercentage) {
		return ErrPercentageExceeded.WithMessage(
			fmt.Sprintf("启用配置的分账比例合计为%s%%，超过100%%", total.StringFixed(2)))
	}
	return nil
}

// ComputeAmount floor(balance × pct / 100)
func ComputeAmount(balance int64, pct decimal.Decimal) int64 {
	if balance <= 0 {
		return 0
	}
	return decimal.NewFromInt(balance).Mul(pct).Div(hundred).Floor().IntPart()
}
