package order

import (
	"time"

	"github.com/xiebiao/ebookstore/internal/domain/order"
)

// OrderDTO 订单输出
type OrderDTO struct {
	ID        uint           `json:"id"`
	CustomID  string         `json:"custom_id"`
	UserID    uint           `json:"user_id"`
	Total     int64          `json:"total_amount"`
	Status    string         `json:"status"`
	Items     []OrderItemDTO `json:"items"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// OrderItemDTO 订单明细
type OrderItemDTO struct {
	BookID          uint   `json:"book_id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	CoverURL        string `json:"cover_url,omitempty"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
	DownloadURL     string `json:"download_url,omitempty"`
}

// ToDTO 实体转输出
func ToDTO(o *order.Order) *OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			BookID:          item.BookID,
			Title:           item.Title,
			Author:          item.Author,
			CoverURL:        item.CoverURL,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.Price,
			DownloadURL:     item.DownloadURL,
		})
	}
	return &OrderDTO{
		ID:        o.ID,
		CustomID:  o.CustomID,
		UserID:    o.UserID,
		Total:     o.Total,
		Status:    o.Status.String(),
		Items:     items,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
	}
}
