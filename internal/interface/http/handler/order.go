package handler

import (
	"github.com/gin-gonic/gin"

	apporder "github.com/xiebiao/ebookstore/internal/application/order"
	apppayment "github.com/xiebiao/ebookstore/internal/application/payment"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/internal/interface/http/dto"
	"github.com/xiebiao/ebookstore/internal/interface/http/middleware"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// OrderHandler 订单HTTP处理器
type OrderHandler struct {
	checkout     *apppayment.CheckoutUseCase
	listOrders   *apporder.ListOrdersUseCase
	getOrder     *apporder.GetOrderUseCase
	transitioner *apporder.Transitioner
}

func NewOrderHandler(
	checkout *apppayment.CheckoutUseCase,
	listOrders *apporder.ListOrdersUseCase,
	getOrder *apporder.GetOrderUseCase,
	transitioner *apporder.Transitioner,
) *OrderHandler {
	return &OrderHandler{
		checkout:     checkout,
		listOrders:   listOrders,
		getOrder:     getOrder,
		transitioner: transitioner,
	}
}

// CreateOrder 下单并发起支付
// @Summary      创建订单
// @Description  按目录当前价格生成订单（待支付），随后向支付服务商申请支付会话；
// @Description  申请失败时订单自动取消
// @Tags         订单
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateOrderRequest true "订单条目"
// @Success      201 {object} response.Response{data=apppayment.CheckoutResponse} "下单成功"
// @Failure      400 {object} response.Response "参数错误"
// @Failure      401 {object} response.Response "未登录"
// @Failure      404 {object} response.Response "图书不存在"
// @Failure      502 {object} response.Response "支付服务暂时不可用"
// @Router       /api/v1/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	items := make([]apporder.CreateOrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = apporder.CreateOrderItem{BookID: item.BookID, Quantity: item.Quantity}
	}

	result, err := h.checkout.Execute(c.Request.Context(), apppayment.CheckoutRequest{
		UserID: middleware.MustGetUserID(c),
		Email:  middleware.GetEmail(c),
		Items:  items,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListOrders 订单列表
// @Summary      订单列表
// @Description  买家只能看到自己的订单，管理员看到全部
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        page      query int    false "页码" default(1)
// @Param        page_size query int    false "每页数量" default(20)
// @Param        status    query string false "pending | completed | cancelled"
// @Success      200 {object} response.Response{data=response.PageData{list=[]apporder.OrderDTO}}
// @Router       /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var query dto.ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.listOrders.Execute(c.Request.Context(), apporder.ListOrdersRequest{
		Requester: middleware.GetRequester(c),
		Status:    query.Status,
		Page:      query.Page,
		PageSize:  query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, result.List, result.Total, result.Page, result.PageSize)
}

// GetOrderByRef 按订单号查询
// @Summary      按订单号查询
// @Tags         订单
// @Produce      json
// @Security     BearerAuth
// @Param        customId path string true "订单号 ORD-YYYYMM-NNNN"
// @Success      200 {object} response.Response{data=apporder.OrderDTO}
// @Failure      403 {object} response.Response "不是自己的订单"
// @Failure      404 {object} response.Response "订单不存在"
// @Router       /api/v1/orders/by-ref/{customId} [get]
func (h *OrderHandler) GetOrderByRef(c *gin.Context) {
	result, err := h.getOrder.Execute(c.Request.Context(), middleware.GetRequester(c), c.Param("customId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateOrderStatus 管理员修改订单状态
// @Summary      修改订单状态
// @Description  只能从pending流转到completed或cancelled；已是终态时applied为false
// @Tags         订单
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                          true "订单ID"
// @Param        request body dto.UpdateOrderStatusRequest true "目标状态"
// @Success      200 {object} response.Response{data=apporder.TransitionResult}
// @Failure      403 {object} response.Response "需要管理员权限"
// @Failure      404 {object} response.Response "订单不存在"
// @Failure      422 {object} response.Response "非法的状态流转"
// @Router       /api/v1/orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	target, err := order.ParseStatus(req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.transitioner.Execute(c.Request.Context(), apporder.TransitionRequest{
		OrderID: id,
		Target:  target,
		Source:  order.SourceAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
