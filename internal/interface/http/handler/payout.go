package handler

import (
	"github.com/gin-gonic/gin"

	apppayout "github.com/xiebiao/ebookstore/internal/application/payout"
	"github.com/xiebiao/ebookstore/internal/interface/http/dto"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// PayoutHandler 分账配置与手动执行（管理员）
type PayoutHandler struct {
	configs *apppayout.ConfigUseCase
	process *apppayout.ProcessPayoutUseCase
}

func NewPayoutHandler(configs *apppayout.ConfigUseCase, process *apppayout.ProcessPayoutUseCase) *PayoutHandler {
	return &PayoutHandler{configs: configs, process: process}
}

// CreateConfig 新建分账配置
// @Summary      新建分账配置
// @Description  启用配置的比例合计不能超过100
// @Tags         分账
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreatePayoutConfigRequest true "分账配置"
// @Success      201 {object} response.Response{data=apppayout.ConfigDTO}
// @Failure      400 {object} response.Response "比例不合法或合计超过100"
// @Failure      403 {object} response.Response "需要管理员权限"
// @Router       /api/v1/payouts [post]
func (h *PayoutHandler) CreateConfig(c *gin.Context) {
	var req dto.CreatePayoutConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.configs.Create(c.Request.Context(), apppayout.CreateConfigRequest{
		Name:        req.Name,
		Destination: req.Destination,
		Percentage:  req.Percentage,
		Frequency:   req.Frequency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListConfigs 分账配置列表
// @Summary      分账配置列表
// @Tags         分账
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=[]apppayout.ConfigDTO}
// @Router       /api/v1/payouts [get]
func (h *PayoutHandler) ListConfigs(c *gin.Context) {
	result, err := h.configs.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateConfig 修改分账配置
// @Summary      修改分账配置
// @Tags         分账
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                           true "配置ID"
// @Param        request body dto.UpdatePayoutConfigRequest true "需要修改的字段"
// @Success      200 {object} response.Response{data=apppayout.ConfigDTO}
// @Failure      400 {object} response.Response "比例不合法或合计超过100"
// @Failure      404 {object} response.Response "配置不存在"
// @Router       /api/v1/payouts/{id} [put]
func (h *PayoutHandler) UpdateConfig(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdatePayoutConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.configs.Update(c.Request.Context(), apppayout.UpdateConfigRequest{
		ID:          id,
		Name:        req.Name,
		Destination: req.Destination,
		Percentage:  req.Percentage,
		Frequency:   req.Frequency,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// PayoutNow 立即执行一次分账
// @Summary      立即分账
// @Description  同一钱包同一时间只允许一个分账在执行
// @Tags         分账
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "配置ID"
// @Success      200 {object} response.Response{data=apppayout.WithdrawalDTO}
// @Failure      404 {object} response.Response "配置不存在"
// @Failure      409 {object} response.Response "分账正在执行"
// @Failure      422 {object} response.Response "余额不足"
// @Failure      502 {object} response.Response "支付服务暂时不可用"
// @Router       /api/v1/payouts/{id}/payout-now [post]
func (h *PayoutHandler) PayoutNow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.process.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
