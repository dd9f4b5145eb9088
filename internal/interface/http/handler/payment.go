package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apppayment "github.com/xiebiao/ebookstore/internal/application/payment"
	"github.com/xiebiao/ebookstore/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/response"
)

const (
	// HeaderWebhookSignature 回调签名：hex(HMAC-SHA512(secret, body))
	HeaderWebhookSignature = "X-Paygate-Signature"

	maxWebhookBody = 1 << 20
)

// PaymentHandler 支付回调与主动查询
type PaymentHandler struct {
	webhook *apppayment.WebhookUseCase
	verify  *apppayment.VerifyUseCase
}

func NewPaymentHandler(webhook *apppayment.WebhookUseCase, verify *apppayment.VerifyUseCase) *PaymentHandler {
	return &PaymentHandler{webhook: webhook, verify: verify}
}

// Webhook 支付服务商回调
// @Summary      支付回调
// @Description  只接受白名单IP且签名正确的请求；重复投递返回duplicate
// @Tags         支付
// @Accept       json
// @Produce      json
// @Param        X-Paygate-Signature header string true "HMAC-SHA512签名"
// @Success      200 {object} response.Response{data=apppayment.WebhookResult}
// @Failure      401 {object} response.Response "签名校验失败"
// @Router       /api/v1/payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	// 签名针对原始字节，不能先反序列化
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, apperrors.ErrInvalidParams.WithMessage("回调内容过大或读取失败"))
		return
	}

	result, err := h.webhook.Execute(c.Request.Context(), apppayment.WebhookRequest{
		ClientIP:  c.ClientIP(),
		Signature: c.GetHeader(HeaderWebhookSignature),
		Body:      body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// VerifyPayment 客户端支付完成后的提示
// @Summary      核实支付结果
// @Description  客户端的"已支付"只作为提示，服务端向支付服务商查询后再流转订单
// @Tags         支付
// @Produce      json
// @Security     BearerAuth
// @Param        reference path string true "订单号"
// @Success      200 {object} response.Response{data=apppayment.VerifyResult}
// @Failure      403 {object} response.Response "不是自己的订单"
// @Failure      502 {object} response.Response "支付服务暂时不可用"
// @Router       /api/v1/payments/{reference}/verify [post]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	result, err := h.verify.Execute(c.Request.Context(), middleware.GetRequester(c), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
