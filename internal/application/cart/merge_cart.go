package cart

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/metrics"
)

// 合并结果
const (
	MergeOutcomeMerged = "merged"
	MergeOutcomeNoop   = "noop"
	MergeOutcomeFailed = "failed"
)

// MergeGuestCartUseCase 登录后把游客购物车合并进账户购物车
//
// 游客购物车只在事务提交成功后删除，持久化失败时保持原样，客户端可重试；
// 同一游客的并发合并由分布式锁串行化。合并记录与购物车在同一事务内写入，
// 删除游客购物车失败后再次合并相同内容是空操作。
type MergeGuestCartUseCase struct {
	cartRepo   cart.Repository
	guestStore cart.GuestStore
	locker     application.Locker
	txManager  application.TxManager
	lockTTL    time.Duration
	logger     zerolog.Logger
}

func NewMergeGuestCartUseCase(
	cartRepo cart.Repository,
	guestStore cart.GuestStore,
	locker application.Locker,
	txManager application.TxManager,
	lockTTL time.Duration,
	logger zerolog.Logger,
) *MergeGuestCartUseCase {
	return &MergeGuestCartUseCase{
		cartRepo:   cartRepo,
		guestStore: guestStore,
		locker:     locker,
		txManager:  txManager,
		lockTTL:    lockTTL,
		logger:     logger.With().Str("component", "cart_merge").Logger(),
	}
}

type MergeRequest struct {
	UserID  uint
	GuestID string
}

type MergeResult struct {
	Outcome string `json:"outcome"`
	Version int64  `json:"version"`
	Items   int    `json:"items"`
}

func (uc *MergeGuestCartUseCase) Execute(ctx context.Context, req MergeRequest) (result *MergeResult, err error) {
	defer func() {
		outcome := MergeOutcomeFailed
		if err == nil {
			outcome = result.Outcome
		}
		metrics.IncCounterVec(metrics.CartMergeTotal, map[string]string{"result": outcome})
	}()

	if req.GuestID == "" {
		return nil, cart.ErrMissingGuestID
	}

	release, err := uc.locker.Acquire(ctx, "cart:merge:"+req.GuestID, uc.lockTTL)
	if err != nil {
		if errors.Is(err, application.ErrLockHeld) {
			return nil, apperrors.ErrConflict.WithMessage("购物车正在合并，请稍后重试")
		}
		return nil, err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			uc.logger.Warn().Err(rerr).Str("guest_id", req.GuestID).Msg("释放合并锁失败")
		}
	}()

	guest, err := uc.guestStore.Get(ctx, req.GuestID)
	if err != nil {
		return nil, err
	}
	if len(guest) == 0 {
		c, err := uc.cartRepo.Get(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Outcome: MergeOutcomeNoop, Version: c.Version, Items: len(c.Items)}, nil
	}

	fingerprint := cart.Fingerprint(guest)
	var (
		merged *cart.Cart
		fresh  bool
	)
	err = uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		durable, err := uc.cartRepo.Lock(txCtx, req.UserID)
		if err != nil {
			return err
		}
		fresh, err = uc.cartRepo.MarkMerged(txCtx, req.GuestID, req.UserID, fingerprint)
		if err != nil {
			return err
		}
		if fresh {
			durable.Replace(cart.FromQuantities(cart.Merge(guest, durable.Quantities())))
			if err := uc.cartRepo.Save(txCtx, durable); err != nil {
				return err
			}
		}
		merged = durable
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 已提交，删除失败时残留的游客购物车由合并记录挡住
	if err := uc.guestStore.Delete(ctx, req.GuestID); err != nil {
		uc.logger.Error().Err(err).Str("guest_id", req.GuestID).Uint("user_id", req.UserID).Msg("删除游客购物车失败")
	}

	if !fresh {
		uc.logger.Info().Str("guest_id", req.GuestID).Uint("user_id", req.UserID).Msg("游客购物车已合并过，跳过")
		return &MergeResult{Outcome: MergeOutcomeNoop, Version: merged.Version, Items: len(merged.Items)}, nil
	}

	uc.logger.Info().Str("guest_id", req.GuestID).Uint("user_id", req.UserID).Int("items", len(merged.Items)).Msg("游客购物车已合并")
	return &MergeResult{Outcome: MergeOutcomeMerged, Version: merged.Version, Items: len(merged.Items)}, nil
}
