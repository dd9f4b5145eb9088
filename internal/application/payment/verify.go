package payment

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	apporder "github.com/xiebiao/ebookstore/internal/application/order"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/internal/domain/payment"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// VerifyUseCase 客户端支付完成提示
// 客户端消息本身不可信，只作为向服务商主动查询的触发器
type VerifyUseCase struct {
	orderRepo    order.Repository
	gateway      payment.Gateway
	transitioner *apporder.Transitioner
	logger       zerolog.Logger
}

func NewVerifyUseCase(
	orderRepo order.Repository,
	gateway payment.Gateway,
	transitioner *apporder.Transitioner,
	logger zerolog.Logger,
) *VerifyUseCase {
	return &VerifyUseCase{
		orderRepo:    orderRepo,
		gateway:      gateway,
		transitioner: transitioner,
		logger:       logger.With().Str("component", "payment_verify").Logger(),
	}
}

type VerifyResult struct {
	Reference      string `json:"reference"`
	Status         string `json:"status"`
	ProviderStatus string `json:"provider_status,omitempty"`
}

func (uc *VerifyUseCase) Execute(ctx context.Context, requester application.Requester, reference string) (*VerifyResult, error) {
	o, err := uc.orderRepo.FindByCustomID(ctx, reference)
	if err != nil {
		return nil, err
	}
	if err := apporder.CheckAccess(requester, o); err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return &VerifyResult{Reference: reference, Status: o.Status.String()}, nil
	}

	v, err := uc.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, apperrors.ErrExternalService.WithErr(err)
	}

	result := &VerifyResult{Reference: reference, Status: o.Status.String(), ProviderStatus: string(v.Status)}
	if !v.Status.IsFinal() {
		return result, nil
	}

	target := order.OrderStatusCancelled
	if v.Status == payment.StatusSuccess {
		if v.Amount == o.Total {
			target = order.OrderStatusCompleted
		} else {
			uc.logger.Warn().Str("custom_id", reference).Int64("expected", o.Total).Int64("paid", v.Amount).Msg("查询到的支付金额与订单不一致")
		}
	}

	transitioned, err := uc.transitioner.Execute(ctx, apporder.TransitionRequest{
		CustomID: reference,
		Target:   target,
		Source:   order.SourceVerify,
	})
	if err != nil {
		return nil, err
	}
	result.Status = transitioned.Order.Status
	return result, nil
}
