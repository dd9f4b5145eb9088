package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/ebookstore/internal/domain/order"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// orderRepository 订单仓储实现(MySQL)
// Order和OrderItem是一个聚合，一起写入、一起加载
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepository{db: db}
}

// Create 创建订单（包含明细）
func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	model := toOrderModel(o)

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return order.ErrDuplicateOrderNo
		}
		return apperrors.Wrap(err, "创建订单失败")
	}

	o.ID = model.ID
	o.CreatedAt = model.CreatedAt
	o.UpdatedAt = model.UpdatedAt
	for i := range o.Items {
		o.Items[i].ID = model.Items[i].ID
		o.Items[i].OrderID = model.ID
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Where("id = ?", id))
}

func (r *orderRepository) FindByCustomID(ctx context.Context, customID string) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Where("custom_id = ?", customID))
}

// LockByID 只锁订单行，明细由Preload单独读取
func (r *orderRepository) LockByID(ctx context.Context, id uint) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *orderRepository) LockByCustomID(ctx context.Context, customID string) (*order.Order, error) {
	return r.first(getDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("custom_id = ?", customID))
}

func (r *orderRepository) first(query *gorm.DB) (*order.Order, error) {
	var model OrderModel
	if err := query.Preload("Items").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "查询订单失败")
	}
	return toOrderEntity(&model), nil
}

// UpdateStatus 只更新状态
func (r *orderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	result := getDB(ctx, r.db).Model(&OrderModel{}).
		Where("id = ?", o.ID).
		Updates(map[string]interface{}{
			"status":     int(o.Status),
			"updated_at": o.UpdatedAt,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新订单状态失败")
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// List 按创建时间倒序分页
func (r *orderRepository) List(ctx context.Context, filter order.ListFilter) ([]*order.Order, int64, error) {
	var (
		models []OrderModel
		total  int64
	)

	query := getDB(ctx, r.db).Model(&OrderModel{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != 0 {
		query = query.Where("status = ?", int(filter.Status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "统计订单失败")
	}

	err := query.Preload("Items").
		Order("created_at DESC").Order("id DESC").
		Limit(filter.PageSize).
		Offset(offset(filter.Page, filter.PageSize)).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询订单列表失败")
	}

	orders := make([]*order.Order, len(models))
	for i := range models {
		orders[i] = toOrderEntity(&models[i])
	}
	return orders, total, nil
}

func toOrderModel(o *order.Order) *OrderModel {
	model := &OrderModel{
		ID:        o.ID,
		CustomID:  o.CustomID,
		UserID:    o.UserID,
		Total:     o.Total,
		Status:    int(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		Items:     make([]OrderItemModel, len(o.Items)),
	}
	for i, item := range o.Items {
		model.Items[i] = OrderItemModel{
			ID:          item.ID,
			OrderID:     item.OrderID,
			BookID:      item.BookID,
			Title:       item.Title,
			Author:      item.Author,
			CoverURL:    item.CoverURL,
			Quantity:    item.Quantity,
			Price:       item.Price,
			DownloadURL: item.DownloadURL,
		}
	}
	return model
}

func toOrderEntity(model *OrderModel) *order.Order {
	o := &order.Order{
		ID:        model.ID,
		CustomID:  model.CustomID,
		UserID:    model.UserID,
		Total:     model.Total,
		Status:    order.OrderStatus(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		Items:     make([]order.OrderItem, len(model.Items)),
	}
	for i, item := range model.Items {
		o.Items[i] = order.OrderItem{
			ID:          item.ID,
			OrderID:     item.OrderID,
			BookID:      item.BookID,
			Title:       item.Title,
			Author:      item.Author,
			CoverURL:    item.CoverURL,
			Quantity:    item.Quantity,
			Price:       item.Price,
			DownloadURL: item.DownloadURL,
		}
	}
	return o
}
