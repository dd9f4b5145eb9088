package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	appcart "github.com/xiebiao/ebookstore/internal/application/cart"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
	"github.com/xiebiao/ebookstore/internal/interface/http/dto"
	"github.com/xiebiao/ebookstore/internal/interface/http/middleware"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// CartHandler 登录用户购物车与游客购物车
type CartHandler struct {
	getCart     *appcart.GetCartUseCase
	replaceCart *appcart.ReplaceCartUseCase
	mergeCart   *appcart.MergeGuestCartUseCase
	guestCart   *appcart.GuestCartUseCase
}

func NewCartHandler(
	getCart *appcart.GetCartUseCase,
	replaceCart *appcart.ReplaceCartUseCase,
	mergeCart *appcart.MergeGuestCartUseCase,
	guestCart *appcart.GuestCartUseCase,
) *CartHandler {
	return &CartHandler{
		getCart:     getCart,
		replaceCart: replaceCart,
		mergeCart:   mergeCart,
		guestCart:   guestCart,
	}
}

// GetCart 查看购物车
// @Summary      查看购物车
// @Description  已下架的图书以ref条目返回，只带book_id和数量
// @Tags         购物车
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=appcart.CartDTO}
// @Failure      401 {object} response.Response "未登录"
// @Router       /api/v1/cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	result, err := h.getCart.Execute(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ReplaceCart 整体覆盖购物车
// @Summary      覆盖购物车
// @Description  携带version时做乐观并发检查，冲突返回409且data为服务端当前购物车
// @Tags         购物车
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.ReplaceCartRequest true "购物车条目"
// @Success      200 {object} response.Response{data=appcart.CartDTO}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      404 {object} response.Response "图书不存在"
// @Failure      409 {object} response.Response{data=appcart.CartDTO} "版本冲突"
// @Router       /api/v1/cart [post]
func (h *CartHandler) ReplaceCart(c *gin.Context) {
	var req dto.ReplaceCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.replaceCart.Execute(c.Request.Context(), appcart.ReplaceCartRequest{
		UserID:          middleware.MustGetUserID(c),
		Items:           toItemInputs(req.Items),
		ExpectedVersion: req.Version,
	})
	if err != nil {
		if errors.Is(err, cart.ErrVersionConflict) {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// MergeCart 合并游客购物车
// @Summary      合并游客购物车
// @Description  同一本书数量相加；游客购物车合并成功后删除，重复调用为noop
// @Tags         购物车
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.MergeCartRequest true "游客标识"
// @Success      200 {object} response.Response{data=appcart.MergeResult}
// @Failure      409 {object} response.Response "合并正在进行"
// @Router       /api/v1/cart/merge [post]
func (h *CartHandler) MergeCart(c *gin.Context) {
	var req dto.MergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.mergeCart.Execute(c.Request.Context(), appcart.MergeRequest{
		UserID:  middleware.MustGetUserID(c),
		GuestID: req.GuestID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetGuestCart 游客购物车
// @Summary      查看游客购物车
// @Tags         购物车
// @Produce      json
// @Param        X-Guest-ID header string false "游客标识，缺失时服务端签发"
// @Success      200 {object} response.Response{data=appcart.CartDTO}
// @Router       /api/v1/guest-cart [get]
func (h *CartHandler) GetGuestCart(c *gin.Context) {
	result, err := h.guestCart.Get(c.Request.Context(), middleware.GetGuestID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ReplaceGuestCart 覆盖游客购物车
// @Summary      覆盖游客购物车
// @Tags         购物车
// @Accept       json
// @Produce      json
// @Param        X-Guest-ID header string false "游客标识，缺失时服务端签发"
// @Param        request body dto.ReplaceCartRequest true "购物车条目（忽略version）"
// @Success      200 {object} response.Response{data=appcart.CartDTO}
// @Failure      400 {object} response.Response "参数错误"
// @Router       /api/v1/guest-cart [post]
func (h *CartHandler) ReplaceGuestCart(c *gin.Context) {
	var req dto.ReplaceCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.guestCart.Replace(c.Request.Context(), middleware.GetGuestID(c), toItemInputs(req.Items))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func toItemInputs(items []dto.CartItemRequest) []appcart.ItemInput {
	inputs := make([]appcart.ItemInput, len(items))
	for i, item := range items {
		inputs[i] = appcart.ItemInput{BookID: item.BookID, Quantity: item.Quantity}
	}
	return inputs
}
