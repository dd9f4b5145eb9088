package payout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/application/apptest"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	configs   *apptest.PayoutConfigs
	records   *apptest.PayoutRecords
	wallet    *apptest.Wallet
	locker    *apptest.Locker
	publisher *apptest.Publisher
	cfgUC     *ConfigUseCase
	process   *ProcessPayoutUseCase
}

func newFixture(balances ...int64) *fixture {
	f := &fixture{
		configs:   apptest.NewPayoutConfigs(),
		records:   &apptest.PayoutRecords{},
		wallet:    &apptest.Wallet{Balances: balances},
		locker:    apptest.NewLocker(),
		publisher: &apptest.Publisher{},
	}
	tx := &apptest.TxManager{}
	fees := payout.NewFeeSchedule([]payout.FeeBand{{UpTo: 5000, Fee: 10}, {UpTo: 50000, Fee: 25}}, 50)

	f.cfgUC = NewConfigUseCase(f.configs, tx, zerolog.Nop())
	f.process = NewProcessPayoutUseCase(f.configs, f.records, f.wallet, fees, f.locker, tx, f.publisher, time.Minute, 3, zerolog.Nop())
	f.process.now = func() time.Time { return fixedNow }
	f.process.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return f
}

func (f *fixture) createConfig(t *testing.T, pct string) *ConfigDTO {
	t.Helper()
	dto, err := f.cfgUC.Create(context.Background(), CreateConfigRequest{
		Name:        "作者分成",
		Destination: "RCP_author",
		Percentage:  decimal.RequireFromString(pct),
		Frequency:   "weekly",
	})
	require.NoError(t, err)
	return dto
}

func TestProcessPayout_Arithmetic(t *testing.T) {
	f := newFixture(1000)
	cfg := f.createConfig(t, "10")

	result, err := f.process.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(100), result.Amount)
	assert.Equal(t, int64(10), result.Fee)
	assert.Equal(t, int64(1000), result.BalanceBefore)
	assert.Equal(t, "succeeded", result.Status)
	assert.Equal(t, "PAYOUT-1-"+decimal.NewFromInt(fixedNow.UnixMilli()).String(), result.Reference)

	require.Len(t, f.wallet.Transfers, 1)
	assert.Equal(t, int64(100), f.wallet.Transfers[0].Amount)
	assert.Equal(t, "RCP_author", f.wallet.Transfers[0].Destination)

	stored, _ := f.configs.FindByID(context.Background(), cfg.ID)
	require.NotNil(t, stored.LastPayoutDate)
	assert.Equal(t, fixedNow, *stored.LastPayoutDate)
	assert.Equal(t, 1, f.publisher.Count(application.EventPayoutExecuted))
	assert.Equal(t, payout.RecordSucceeded, f.records.Records[0].Status)
}

func TestProcessPayout_FloorsAmount(t *testing.T) {
	f := newFixture(999)
	cfg := f.createConfig(t, "33.33")

	result, err := f.process.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(332), result.Amount, "999×33.33% = 332.97，向下取整")
}

func TestProcessPayout_InsufficientForFee(t *testing.T) {
	f := newFixture(105)
	cfg := f.createConfig(t, "100")

	_, err := f.process.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	assert.Empty(t, f.wallet.Transfers, "余额不足时不应发起提现")

	require.Len(t, f.records.Records, 1)
	assert.Equal(t, payout.RecordFailed, f.records.Records[0].Status)

	stored, _ := f.configs.FindByID(context.Background(), cfg.ID)
	assert.Nil(t, stored.LastPayoutDate)
}

func TestProcessPayout_ZeroAmount(t *testing.T) {
	f := newFixture(5)
	cfg := f.createConfig(t, "10")

	_, err := f.process.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	assert.Empty(t, f.wallet.Transfers)
}

func TestProcessPayout_ConfigChecks(t *testing.T) {
	f := newFixture(1000)

	_, err := f.process.Execute(context.Background(), 404)
	assert.ErrorIs(t, err, payout.ErrConfigNotFound)

	cfg := f.createConfig(t, "10")
	inactive := false
	_, err = f.cfgUC.Update(context.Background(), UpdateConfigRequest{ID: cfg.ID, IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.process.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, payout.ErrConfigInactive)
}

func TestProcessPayout_RetriesReuseReferenceAndRecheckBalance(t *testing.T) {
	f := newFixture(1000, 1000)
	f.wallet.TransferErrs = []error{apperrors.ErrExternalService.WithErr(errors.New("502"))}
	cfg := f.createConfig(t, "10")

	result, err := f.process.Execute(context.Background(), cfg.ID)
	require.NoError(t, err)

	require.Len(t, f.wallet.Transfers, 2)
	assert.Equal(t, f.wallet.Transfers[0].Reference, f.wallet.Transfers[1].Reference, "重试必须复用同一个Reference")
	assert.Equal(t, result.Reference, f.wallet.Transfers[1].Reference)
	assert.Equal(t, 2, f.wallet.BalanceCalls, "重试前应重新读取余额")
	assert.Len(t, f.records.Records, 1)
}

func TestProcessPayout_RetryStopsWhenBalanceDrops(t *testing.T) {
	f := newFixture(1000, 50)
	f.wallet.TransferErrs = []error{apperrors.ErrExternalService}
	cfg := f.createConfig(t, "10")

	_, err := f.process.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	assert.Len(t, f.wallet.Transfers, 1)
	assert.Equal(t, payout.RecordFailed, f.records.Records[0].Status)
}

func TestProcessPayout_PermanentErrorNotRetried(t *testing.T) {
	f := newFixture(1000)
	f.wallet.TransferErrs = []error{apperrors.ErrValidation.WithMessage("收款方无效")}
	cfg := f.createConfig(t, "10")

	_, err := f.process.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Len(t, f.wallet.Transfers, 1)
}

func TestProcessPayout_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(1000)
	f.wallet.TransferErrs = []error{apperrors.ErrExternalService, apperrors.ErrExternalService, apperrors.ErrExternalService, nil}
	cfg := f.createConfig(t, "10")

	_, err := f.process.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
	assert.Len(t, f.wallet.Transfers, 3)
}

func TestProcessPayout_LockHeld(t *testing.T) {
	f := newFixture(1000)
	cfg := f.createConfig(t, "10")
	f.locker.Hold("payout:lock:test-wallet")

	_, err := f.process.Execute(context.Background(), cfg.ID)
	assert.ErrorIs(t, err, payout.ErrPayoutInProgress)
	assert.Empty(t, f.wallet.Transfers)
}

func TestConfig_PercentageInvariant(t *testing.T) {
	f := newFixture()
	f.createConfig(t, "60")
	second := f.createConfig(t, "30")

	_, err := f.cfgUC.Create(context.Background(), CreateConfigRequest{
		Name: "超额", Destination: "RCP_x", Percentage: decimal.RequireFromString("10.01"), Frequency: "daily",
	})
	assert.ErrorIs(t, err, payout.ErrPercentageExceeded)

	raised := decimal.RequireFromString("40.01")
	_, err = f.cfgUC.Update(context.Background(), UpdateConfigRequest{ID: second.ID, Percentage: &raised})
	assert.ErrorIs(t, err, payout.ErrPercentageExceeded)

	list, err := f.cfgUC.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2, "被拒绝的配置不应落库")
	assert.True(t, list[1].Percentage.Equal(decimal.NewFromInt(30)), "被拒绝的修改不应落库")

	exact := decimal.RequireFromString("40")
	_, err = f.cfgUC.Update(context.Background(), UpdateConfigRequest{ID: second.ID, Percentage: &exact})
	assert.NoError(t, err, "合计恰好100是允许的")
}

func TestConfig_DeactivatedDoesNotCount(t *testing.T) {
	f := newFixture()
	first := f.createConfig(t, "80")

	inactive := false
	_, err := f.cfgUC.Update(context.Background(), UpdateConfigRequest{ID: first.ID, IsActive: &inactive})
	require.NoError(t, err)

	f.createConfig(t, "80")

	active := true
	_, err = f.cfgUC.Update(context.Background(), UpdateConfigRequest{ID: first.ID, IsActive: &active})
	assert.ErrorIs(t, err, payout.ErrPercentageExceeded, "重新启用也要校验合计")
}

func TestConfig_ConcurrentCreatesRespectLimit(t *testing.T) {
	f := newFixture()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.cfgUC.Create(context.Background(), CreateConfigRequest{
				Name: "并发", Destination: "RCP", Percentage: decimal.NewFromInt(30), Frequency: "monthly",
			})
		}()
	}
	wg.Wait()

	sum, err := f.configs.SumActivePercentage(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, sum.LessThanOrEqual(decimal.NewFromInt(100)), "启用配置合计不得超过100，实际%s", sum)
	assert.Equal(t, 10, f.configs.GuardLocks)
}

func TestConfig_Validation(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name string
		req  CreateConfigRequest
		want error
	}{
		{"比例为负", CreateConfigRequest{Name: "a", Destination: "b", Percentage: decimal.NewFromInt(-1), Frequency: "daily"}, payout.ErrInvalidPercentage},
		{"三位小数", CreateConfigRequest{Name: "a", Destination: "b", Percentage: decimal.RequireFromString("1.005"), Frequency: "daily"}, payout.ErrInvalidPercentage},
		{"未知频率", CreateConfigRequest{Name: "a", Destination: "b", Percentage: decimal.NewFromInt(1), Frequency: "hourly"}, payout.ErrInvalidFrequency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.cfgUC.Create(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("期望错误%v，实际%v", tc.want, err)
			}
		})
	}
}

func TestConfig_ZeroPercentage(t *testing.T) {
	f := newFixture(10000)

	created, err := f.cfgUC.Create(context.Background(), CreateConfigRequest{
		Name: "暂停分成", Destination: "0800000000", Percentage: decimal.Zero, Frequency: "monthly",
	})
	require.NoError(t, err, "0%比例应允许创建")
	assert.True(t, created.Percentage.IsZero())

	_, err = f.process.Execute(context.Background(), created.ID)
	assert.ErrorIs(t, err, payout.ErrInsufficientFunds, "0%配置没有可分账金额")
	assert.Empty(t, f.wallet.Transfers, "不应发起提现")
}

func TestRunDuePayouts(t *testing.T) {
	f := newFixture(10000)
	due := f.createConfig(t, "10")
	notDue := f.createConfig(t, "20")
	broken := f.createConfig(t, "30")

	recent := fixedNow.Add(-time.Hour)
	require.NoError(t, f.configs.MarkPaid(context.Background(), notDue.ID, recent))
	// 第三个配置的提现被服务商拒绝
	f.wallet.TransferErrs = []error{nil, apperrors.ErrValidation}

	runs, err := f.process.RunDuePayouts(context.Background(), fixedNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "分账配置[3]")

	require.Len(t, runs, 2)
	assert.Equal(t, due.ID, runs[0].ConfigID)
	assert.Empty(t, runs[0].Error)
	assert.Equal(t, broken.ID, runs[1].ConfigID)
	assert.NotEmpty(t, runs[1].Error)
}
