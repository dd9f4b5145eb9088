package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/metrics"
	"github.com/xiebiao/ebookstore/pkg/tracing"
)

// ProcessPayoutUseCase 按配置从结算钱包提现给收款方
type ProcessPayoutUseCase struct {
	configRepo  payout.ConfigRepository
	recordRepo  payout.RecordRepository
	wallet      payout.Wallet
	fees        payout.FeeSchedule
	locker      application.Locker
	txManager   application.TxManager
	publisher   application.EventPublisher
	lockTTL     time.Duration
	maxAttempts int
	logger      zerolog.Logger

	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewProcessPayoutUseCase(
	configRepo payout.ConfigRepository,
	recordRepo payout.RecordRepository,
	wallet payout.Wallet,
	fees payout.FeeSchedule,
	locker application.Locker,
	txManager application.TxManager,
	publisher application.EventPublisher,
	lockTTL time.Duration,
	maxAttempts int,
	logger zerolog.Logger,
) *ProcessPayoutUseCase {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ProcessPayoutUseCase{
		configRepo:  configRepo,
		recordRepo:  recordRepo,
		wallet:      wallet,
		fees:        fees,
		locker:      locker,
		txManager:   txManager,
		publisher:   publisher,
		lockTTL:     lockTTL,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "payout").Logger(),
		now:         time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Execute 执行一次分账
//
//	amount = floor(B × pct / 100)，fee按档位计算，B < amount + fee 时不发起提现；
//	同一钱包同时只允许一个分账在执行；
//	每次重试前重新读取余额并校验，重试复用同一个Reference。
func (uc *ProcessPayoutUseCase) Execute(ctx context.Context, configID uint) (result *WithdrawalDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "payout", "ProcessPayout")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	release, err := uc.locker.Acquire(ctx, "payout:lock:"+uc.wallet.ID(), uc.lockTTL)
	if err != nil {
		if errors.Is(err, application.ErrLockHeld) {
			metrics.IncCounterVec(metrics.PayoutsTotal, map[string]string{"result": "in_progress"})
			return nil, payout.ErrPayoutInProgress
		}
		return nil, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			uc.logger.Warn().Err(rerr).Msg("释放分账锁失败")
		}
	}()

	res, err := uc.execute(ctx, configID)
	label := "succeeded"
	switch {
	case errors.Is(err, payout.ErrInsufficientFunds):
		label = "insufficient_funds"
	case err != nil:
		label = "failed"
	}
	metrics.IncCounterVec(metrics.PayoutsTotal, map[string]string{"result": label})
	if err != nil {
		return nil, err
	}
	metrics.AddCounter(metrics.PayoutAmount, float64(res.Amount))
	return toWithdrawalDTO(res), nil
}

func (uc *ProcessPayoutUseCase) execute(ctx context.Context, configID uint) (*payout.WithdrawalResult, error) {
	cfg, err := uc.configRepo.FindByID(ctx, configID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsActive {
		return nil, payout.ErrConfigInactive
	}

	balance, err := uc.wallet.Balance(ctx)
	if err != nil {
		return nil, err
	}
	amount := payout.ComputeAmount(balance, cfg.Percentage)
	if amount <= 0 {
		return nil, payout.ErrInsufficientFunds.WithMessage("结算账户余额不足，无可分账金额")
	}
	fee := uc.fees.Fee(amount)

	now := uc.now()
	rec := &payout.Record{
		Reference:     payout.NewReference(cfg.ID, now),
		ConfigID:      cfg.ID,
		Amount:        amount,
		Fee:           fee,
		BalanceBefore: balance,
		Status:        payout.RecordPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if balance < amount+fee {
		rec.Fail(fmt.Sprintf("余额%d不足以支付金额%d与手续费%d", balance, amount, fee))
		if err := uc.recordRepo.Create(ctx, rec); err != nil {
			return nil, err
		}
		uc.logger.Warn().Uint("config_id", cfg.ID).Int64("balance", balance).Int64("amount", amount).Int64("fee", fee).Msg("余额不足，未发起提现")
		return nil, payout.ErrInsufficientFunds
	}

	// 首次提交前落库，重试与后续对账都以Reference为准
	if err := uc.recordRepo.Create(ctx, rec); err != nil {
		return nil, err
	}

	transfer, err := uc.transfer(ctx, cfg, rec)
	if err != nil {
		rec.Fail(err.Error())
		if uerr := uc.recordRepo.Update(ctx, rec); uerr != nil {
			uc.logger.Error().Err(uerr).Str("reference", rec.Reference).Msg("更新分账记录失败")
		}
		uc.logger.Error().Err(err).Str("reference", rec.Reference).Uint("config_id", cfg.ID).Msg("分账提现失败")
		return nil, err
	}

	executedAt := uc.now()
	err = uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		rec.Succeed(transfer.TransferCode)
		if err := uc.recordRepo.Update(txCtx, rec); err != nil {
			return err
		}
		return uc.configRepo.MarkPaid(txCtx, cfg.ID, executedAt)
	})
	if err != nil {
		// 钱已转出，只能人工对账
		uc.logger.Error().Err(err).Str("reference", rec.Reference).Str("transfer_code", transfer.TransferCode).Msg("提现成功但记录落库失败")
		return nil, err
	}

	event := application.PayoutEvent{
		Reference:    rec.Reference,
		ConfigID:     cfg.ID,
		Amount:       amount,
		Fee:          fee,
		TransferCode: transfer.TransferCode,
		OccurredAt:   executedAt,
	}
	if err := uc.publisher.Publish(ctx, application.EventPayoutExecuted, event); err != nil {
		uc.logger.Warn().Err(err).Str("reference", rec.Reference).Msg("发布payout.executed失败")
	}

	uc.logger.Info().
		Str("reference", rec.Reference).
		Uint("config_id", cfg.ID).
		Int64("amount", amount).
		Int64("fee", fee).
		Msg("分账完成")
	return payout.ResultOf(rec, executedAt), nil
}

// transfer 只对服务商暂时不可用重试，其余错误直接返回
func (uc *ProcessPayoutUseCase) transfer(ctx context.Context, cfg *payout.Config, rec *payout.Record) (*payout.TransferResult, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(uc.newBackOff(), uint64(uc.maxAttempts-1)), ctx)

	var (
		result  *payout.TransferResult
		attempt int
	)
	op := func() error {
		attempt++
		if attempt > 1 {
			balance, err := uc.wallet.Balance(ctx)
			if err != nil {
				return retryable(err)
			}
			if balance < rec.Amount+rec.Fee {
				return backoff.Permanent(payout.ErrInsufficientFunds)
			}
		}

		res, err := uc.wallet.Transfer(ctx, payout.TransferRequest{
			Reference:   rec.Reference,
			Amount:      rec.Amount,
			Destination: cfg.Destination,
			Reason:      "payout: " + cfg.Name,
		})
		if err != nil {
			uc.logger.Warn().Err(err).Str("reference", rec.Reference).Int("attempt", attempt).Msg("提现请求失败")
			return retryable(err)
		}
		result = res
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func retryable(err error) error {
	if errors.Is(err, apperrors.ErrExternalService) {
		return err
	}
	return backoff.Permanent(err)
}

// DueRun 一次批量分账中单个配置的结果
type DueRun struct {
	ConfigID uint           `json:"config_id"`
	Result   *WithdrawalDTO `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// RunDuePayouts 依次执行所有到期的启用配置，单个失败不影响其余配置
func (uc *ProcessPayoutUseCase) RunDuePayouts(ctx context.Context, now time.Time) ([]DueRun, error) {
	configs, err := uc.configRepo.List(ctx, true)
	if err != nil {
		return nil, err
	}

	var (
		runs   []DueRun
		result *multierror.Error
	)
	for _, cfg := range configs {
		if !cfg.IsDue(now) {
			continue
		}
		res, err := uc.Execute(ctx, cfg.ID)
		run := DueRun{ConfigID: cfg.ID, Result: res}
		if err != nil {
			run.Error = err.Error()
			result = multierror.Append(result, fmt.Errorf("分账配置[%d]: %w", cfg.ID, err))
		}
		runs = append(runs, run)
	}
	return runs, result.ErrorOrNil()
}
