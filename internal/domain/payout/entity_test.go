package payout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAmount(t *testing.T) {
	cases := []struct {
		balance int64
		pct     string
		want    int64
	}{
		{1000, "10", 100},
		{999, "10", 99},
		{1, "50", 0},
		{12345, "33.33", 4114},
		{1000, "100", 1000},
		{0, "10", 0},
		{-5, "10", 0},
	}
	for _, tc := range cases {
		got := ComputeAmount(tc.balance, decimal.RequireFromString(tc.pct))
		if got != tc.want {
			t.Errorf("ComputeAmount(%d, %s) 期望%d，实际%d", tc.balance, tc.pct, tc.want, got)
		}
	}
}

func TestFeeSchedule(t *testing.T) {
	s := NewFeeSchedule([]FeeBand{{UpTo: 5000, Fee: 25}, {UpTo: 1000, Fee: 10}}, 50)

	assert.Equal(t, int64(10), s.Fee(1))
	assert.Equal(t, int64(10), s.Fee(1000))
	assert.Equal(t, int64(25), s.Fee(1001))
	assert.Equal(t, int64(25), s.Fee(5000))
	assert.Equal(t, int64(50), s.Fee(5001))

	var prev int64
	for amount := int64(0); amount < 10000; amount += 97 {
		fee := s.Fee(amount)
		if fee < prev {
			t.Fatalf("手续费应单调不减: amount=%d fee=%d prev=%d", amount, fee, prev)
		}
		prev = fee
	}
}

func TestValidatePercentage(t *testing.T) {
	for _, ok := range []string{"0", "0.00", "0.01", "10", "33.33", "100"} {
		assert.NoError(t, ValidatePercentage(decimal.RequireFromString(ok)), ok)
	}
	for _, bad := range []string{"-0.01", "-1", "100.01", "10.005"} {
		assert.Error(t, ValidatePercentage(decimal.RequireFromString(bad)), bad)
	}
}

func TestCheckActiveTotal(t *testing.T) {
	assert.NoError(t, CheckActiveTotal(decimal.RequireFromString("60"), decimal.RequireFromString("40")))

	err := CheckActiveTotal(decimal.RequireFromString("60"), decimal.RequireFromString("50"))
	assert.ErrorIs(t, err, ErrPercentageExceeded)
}

func TestConfig_IsDue(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"从未分账", Config{IsActive: true, Frequency: FrequencyDaily}, true},
		{"未启用", Config{IsActive: false, Frequency: FrequencyDaily}, false},
		{"日结未满24小时", Config{IsActive: true, Frequency: FrequencyDaily, LastPayoutDate: at(23 * time.Hour)}, false},
		{"日结刚满24小时", Config{IsActive: true, Frequency: FrequencyDaily, LastPayoutDate: at(24 * time.Hour)}, true},
		{"周结6天", Config{IsActive: true, Frequency: FrequencyWeekly, LastPayoutDate: at(6 * 24 * time.Hour)}, false},
		{"周结7天", Config{IsActive: true, Frequency: FrequencyWeekly, LastPayoutDate: at(7 * 24 * time.Hour)}, true},
		{"月结29天", Config{IsActive: true, Frequency: FrequencyMonthly, LastPayoutDate: at(29 * 24 * time.Hour)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.IsDue(now))
		})
	}

	// 2月29日 + 1个月 = 3月29日
	last := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	monthly := Config{IsActive: true, Frequency: FrequencyMonthly, LastPayoutDate: &last}
	assert.True(t, monthly.IsDue(now))
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(" 作者分成 ", "RCP_abc", decimal.RequireFromString("12.5"), FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, "作者分成", cfg.Name)
	assert.True(t, cfg.IsActive)

	_, err = NewConfig("x", "", decimal.NewFromInt(1), FrequencyDaily)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewConfig("x", "y", decimal.NewFromInt(1), Frequency("hourly"))
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestNewReference(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "PAYOUT-7-1700000000123", NewReference(7, now))
}
