package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apporder "github.com/xiebiao/ebookstore/internal/application/order"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/internal/domain/payment"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/saga"
	"github.com/xiebiao/ebookstore/pkg/tracing"
)

// CheckoutUseCase 结账：下单 + 初始化支付会话
// 支付会话创建失败时订单被补偿为已取消
type CheckoutUseCase struct {
	createOrder  *apporder.CreateOrderUseCase
	transitioner *apporder.Transitioner
	gateway      payment.Gateway
	callbackURL  string
	timeout      time.Duration
	logger       zerolog.Logger
}

func NewCheckoutUseCase(
	createOrder *apporder.CreateOrderUseCase,
	transitioner *apporder.Transitioner,
	gateway payment.Gateway,
	callbackURL string,
	timeout time.Duration,
	logger zerolog.Logger,
) *CheckoutUseCase {
	return &CheckoutUseCase{
		createOrder:  createOrder,
		transitioner: transitioner,
		gateway:      gateway,
		callbackURL:  callbackURL,
		timeout:      timeout,
		logger:       logger.With().Str("component", "checkout").Logger(),
	}
}

type CheckoutRequest struct {
	UserID uint
	Email  string
	Items  []apporder.CreateOrderItem
}

// SessionDTO 前端拉起支付组件所需信息
type SessionDTO struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type CheckoutResponse struct {
	Order   *apporder.OrderDTO `json:"order"`
	Payment *SessionDTO        `json:"payment"`
}

func (uc *CheckoutUseCase) Execute(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "payment", "Checkout")
	defer span.End()

	var (
		created  *apporder.OrderDTO
		session  *payment.Session
		orderErr error
	)

	s := saga.NewSaga("checkout", uc.timeout)
	s.AddStep("create_order",
		func(ctx context.Context) error {
			created, orderErr = uc.createOrder.Execute(ctx, apporder.CreateOrderRequest{UserID: req.UserID, Items: req.Items})
			return orderErr
		},
		func(ctx context.Context) error {
			_, err := uc.transitioner.Execute(ctx, apporder.TransitionRequest{
				OrderID: created.ID,
				Target:  order.OrderStatusCancelled,
				Source:  order.SourceCheckout,
			})
			return err
		},
	)
	s.AddStep("init_payment",
		func(ctx context.Context) error {
			var err error
			session, err = uc.gateway.InitializeTransaction(ctx, payment.InitRequest{
				Reference:   created.CustomID,
				Amount:      created.Total,
				Email:       req.Email,
				CallbackURL: uc.callbackURL,
			})
			return err
		},
		nil,
	)

	if err := s.Execute(ctx); err != nil {
		tracing.RecordError(span, err)
		// 下单本身失败（校验、图书不存在、订单号冲突）原样返回
		if orderErr != nil {
			return nil, orderErr
		}
		// 请求已取消或超时，订单未创建
		if created == nil {
			uc.logger.Warn().Err(err).Uint("user_id", req.UserID).Msg("下单前上下文已结束")
			return nil, apperrors.ErrExternalService.WithErr(err)
		}
		uc.logger.Error().Err(err).Str("custom_id", created.CustomID).Msg("初始化支付会话失败，订单已取消")
		return nil, apperrors.ErrExternalService.WithErr(err)
	}

	return &CheckoutResponse{
		Order: created,
		Payment: &SessionDTO{
			AuthorizationURL: session.AuthorizationURL,
			AccessCode:       session.AccessCode,
			Reference:        session.Reference,
		},
	}, nil
}
