package order

import (
	"context"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// ListOrdersUseCase 订单列表
// 管理员看全部，其他人只看自己的
type ListOrdersUseCase struct {
	orderRepo order.Repository
}

func NewListOrdersUseCase(orderRepo order.Repository) *ListOrdersUseCase {
	return &ListOrdersUseCase{orderRepo: orderRepo}
}

type ListOrdersRequest struct {
	Requester application.Requester
	Status    string
	Page      int
	PageSize  int
}

type ListOrdersResponse struct {
	List     []*OrderDTO `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, req ListOrdersRequest) (*ListOrdersResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	filter := order.ListFilter{Page: req.Page, PageSize: req.PageSize}
	if !req.Requester.IsAdmin() {
		filter.UserID = req.Requester.UserID
	}
	if req.Status != "" {
		status, err := order.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	orders, total, err := uc.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	list := make([]*OrderDTO, 0, len(orders))
	for _, o := range orders {
		list = append(list, ToDTO(o))
	}
	return &ListOrdersResponse{List: list, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}

// GetOrderUseCase 按订单号查询
type GetOrderUseCase struct {
	orderRepo order.Repository
}

func NewGetOrderUseCase(orderRepo order.Repository) *GetOrderUseCase {
	return &GetOrderUseCase{orderRepo: orderRepo}
}

// Execute 非本人且非管理员返回Forbidden
func (uc *GetOrderUseCase) Execute(ctx context.Context, requester application.Requester, customID string) (*OrderDTO, error) {
	o, err := uc.orderRepo.FindByCustomID(ctx, customID)
	if err != nil {
		return nil, err
	}
	if err := CheckAccess(requester, o); err != nil {
		return nil, err
	}
	return ToDTO(o), nil
}

// CheckAccess 订单归属校验
func CheckAccess(requester application.Requester, o *order.Order) error {
	if requester.IsAdmin() || o.IsOwnedBy(requester.UserID) {
		return nil
	}
	return apperrors.ErrForbidden.WithMessage("无权访问该订单")
}
