package dto

type CartItemRequest struct {
	BookID   uint `json:"book_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required,min=1,max=999"`
}

// ReplaceCartRequest 整体覆盖购物车
// version为客户端持有的版本号，过期时返回409和服务端当前购物车
type ReplaceCartRequest struct {
	Items   []CartItemRequest `json:"items" binding:"omitempty,max=200,dive"`
	Version *int64            `json:"version"`
}

type MergeCartRequest struct {
	GuestID string `json:"guest_id" binding:"required,max=64"`
}
