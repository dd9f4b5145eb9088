package payment

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	apporder "github.com/xiebiao/ebookstore/internal/application/order"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/internal/domain/payment"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/metrics"
)

// 回调处理结果
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookRejected  = "rejected"
)

// WebhookUseCase 支付服务商回调，订单结算的唯一可信来源
type WebhookUseCase struct {
	orderRepo    order.Repository
	events       payment.EventRepository
	transitioner *apporder.Transitioner
	txManager    application.TxManager
	secret       []byte
	allowList    []netip.Prefix
	logger       zerolog.Logger
}

func NewWebhookUseCase(
	orderRepo order.Repository,
	events payment.EventRepository,
	transitioner *apporder.Transitioner,
	txManager application.TxManager,
	secret string,
	allowList []netip.Prefix,
	logger zerolog.Logger,
) *WebhookUseCase {
	return &WebhookUseCase{
		orderRepo:    orderRepo,
		events:       events,
		transitioner: transitioner,
		txManager:    txManager,
		secret:       []byte(secret),
		allowList:    allowList,
		logger:       logger.With().Str("component", "payment_webhook").Logger(),
	}
}

// WebhookRequest Body必须是未经改写的原始请求体
type WebhookRequest struct {
	ClientIP  string
	Signature string
	Body      []byte
}

type WebhookResult struct {
	Result    string `json:"result"`
	Reference string `json:"reference,omitempty"`
}

// Execute 处理回调
//  1. 来源IP不在白名单：丢弃，返回ignored
//  2. 签名不匹配：返回ErrInvalidSignature
//  3. 未知事件类型：确认并忽略
//  4. 事务内：登记事件ID（重复即返回duplicate）、锁定订单、金额一致才算支付成功
func (uc *WebhookUseCase) Execute(ctx context.Context, req WebhookRequest) (result *WebhookResult, err error) {
	defer func() {
		label := WebhookRejected
		if err == nil {
			label = result.Result
		}
		metrics.IncCounterVec(metrics.PaymentWebhooksTotal, map[string]string{"result": label})
	}()

	if !uc.allowed(req.ClientIP) {
		uc.logger.Warn().Str("client_ip", req.ClientIP).Msg("回调来源不在白名单，已丢弃")
		return &WebhookResult{Result: WebhookIgnored}, nil
	}

	if !payment.VerifySignature(uc.secret, req.Body, req.Signature) {
		uc.logger.Warn().Str("client_ip", req.ClientIP).Msg("回调签名校验失败")
		return nil, apperrors.ErrInvalidSignature
	}

	event, err := payment.ParseEvent(req.Body)
	if err != nil {
		return nil, err
	}

	outcome, known := event.Outcome()
	if !known {
		uc.logger.Info().Str("event", event.Type).Str("reference", event.Reference).Msg("忽略未知回调事件")
		return &WebhookResult{Result: WebhookIgnored, Reference: event.Reference}, nil
	}

	return uc.settle(ctx, event, outcome)
}

func (uc *WebhookUseCase) settle(ctx context.Context, event *payment.Event, outcome payment.Outcome) (*WebhookResult, error) {
	result := &WebhookResult{Result: WebhookProcessed, Reference: outcome.Reference}

	var (
		locked  *order.Order
		applied bool
	)
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		inserted, err := uc.events.Record(txCtx, &payment.EventRecord{
			EventID:     event.ID,
			Reference:   outcome.Reference,
			Type:        event.Type,
			Success:     outcome.Success,
			ProcessedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			result.Result = WebhookDuplicate
			return nil
		}

		locked, err = uc.orderRepo.LockByCustomID(txCtx, outcome.Reference)
		if errors.Is(err, order.ErrOrderNotFound) {
			// 登记事件后确认，服务商不再重投
			uc.logger.Warn().Str("reference", outcome.Reference).Str("event_id", event.ID).Msg("回调引用的订单不存在")
			result.Result = WebhookIgnored
			return nil
		}
		if err != nil {
			return err
		}

		applied, err = uc.transitioner.ApplyLocked(txCtx, locked, uc.target(locked, outcome), order.SourceWebhook)
		return err
	})
	if err != nil {
		return nil, err
	}

	if applied {
		uc.transitioner.AfterCommit(ctx, locked, order.SourceWebhook)
	}
	return result, nil
}

// target 支付成功且金额与订单总额一致才完成，否则取消
func (uc *WebhookUseCase) target(o *order.Order, outcome payment.Outcome) order.OrderStatus {
	if !outcome.Success {
		return order.OrderStatusCancelled
	}
	if outcome.Amount != o.Total {
		uc.logger.Warn().
			Str("custom_id", o.CustomID).
			Int64("expected", o.Total).
			Int64("paid", outcome.Amount).
			Msg("支付金额与订单金额不一致，取消订单")
		return order.OrderStatusCancelled
	}
	return order.OrderStatusCompleted
}

func (uc *WebhookUseCase) allowed(clientIP string) bool {
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range uc.allowList {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
