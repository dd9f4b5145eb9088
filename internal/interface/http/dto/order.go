package dto

// CreateOrderRequest 下单请求，价格以服务端目录为准
type CreateOrderRequest struct {
	Items []CartItemRequest `json:"items" binding:"required,min=1,max=200,dive"`
}

// ListOrdersQuery 订单列表
type ListOrdersQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=pending completed cancelled"`
}

// UpdateOrderStatusRequest 管理员修改订单状态
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// DownloadRequest 申请下载链接
type DownloadRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
	BookID  uint `json:"book_id" binding:"required"`
}
