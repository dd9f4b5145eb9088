package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/ebookstore/internal/domain/cart"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// cartRepository 登录用户购物车
// 每个用户一行carts，条目存cart_items，(cart_id, book_id)唯一
type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepository{db: db}
}

func (r *cartRepository) Get(ctx context.Context, userID uint) (*cart.Cart, error) {
	var model CartModel
	err := getDB(ctx, r.db).Preload("Items").Where("user_id = ?", userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &cart.Cart{UserID: userID, Items: []cart.Item{}}, nil
		}
		return nil, apperrors.Wrap(err, "查询购物车失败")
	}
	return toCartEntity(&model), nil
}

// Lock 先插入空购物车（已存在则忽略），再SELECT ... FOR UPDATE
func (r *cartRepository) Lock(ctx context.Context, userID uint) (*cart.Cart, error) {
	db := getDB(ctx, r.db)

	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&CartModel{UserID: userID, UpdatedAt: time.Now()}).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "创建购物车失败")
	}

	var model CartModel
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		Where("user_id = ?", userID).
		First(&model).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "锁定购物车失败")
	}
	return toCartEntity(&model), nil
}

// Save 条目整体替换
func (r *cartRepository) Save(ctx context.Context, c *cart.Cart) error {
	db := getDB(ctx, r.db)

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	err := db.Model(&CartModel{}).Where("id = ?", c.ID).
		Updates(map[string]interface{}{"version": c.Version, "updated_at": updatedAt}).Error
	if err != nil {
		return apperrors.Wrap(err, "更新购物车失败")
	}

	if err := db.Where("cart_id = ?", c.ID).Delete(&CartItemModel{}).Error; err != nil {
		return apperrors.Wrap(err, "清理购物车条目失败")
	}
	if len(c.Items) == 0 {
		return nil
	}

	items := make([]CartItemModel, len(c.Items))
	for i, item := range c.Items {
		items[i] = CartItemModel{CartID: c.ID, BookID: item.BookID, Quantity: item.Quantity}
	}
	if err := db.Create(&items).Error; err != nil {
		return apperrors.Wrap(err, "写入购物车条目失败")
	}
	return nil
}

// Clear 支付完成后清空，递增版本让其他设备的旧快照失效
func (r *cartRepository) Clear(ctx context.Context, userID uint) error {
	db := getDB(ctx, r.db)

	var model CartModel
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, "查询购物车失败")
	}

	if err := db.Where("cart_id = ?", model.ID).Delete(&CartItemModel{}).Error; err != nil {
		return apperrors.Wrap(err, "清空购物车失败")
	}
	err = db.Model(&CartModel{}).Where("id = ?", model.ID).
		Updates(map[string]interface{}{"version": gorm.Expr("version + 1"), "updated_at": time.Now()}).Error
	if err != nil {
		return apperrors.Wrap(err, "更新购物车版本失败")
	}
	return nil
}

// MarkMerged 锁定guest_id对应的合并记录，指纹相同视为已合并，否则插入或覆盖
func (r *cartRepository) MarkMerged(ctx context.Context, guestID string, userID uint, fingerprint string) (bool, error) {
	db := getDB(ctx, r.db)
	now := time.Now()

	var model GuestCartMergeModel
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("guest_id = ?", guestID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Create(&GuestCartMergeModel{GuestID: guestID, UserID: userID, Fingerprint: fingerprint, MergedAt: now}).Error
		if isDuplicateError(err) {
			return false, apperrors.ErrConflict.WithMessage("购物车正在合并，请稍后重试")
		}
		if err != nil {
			return false, apperrors.Wrap(err, "写入合并记录失败")
		}
		return true, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, "查询合并记录失败")
	}
	if model.Fingerprint == fingerprint {
		return false, nil
	}

	err = db.Model(&GuestCartMergeModel{}).Where("id = ?", model.ID).
		Updates(map[string]interface{}{"user_id": userID, "fingerprint": fingerprint, "merged_at": now}).Error
	if err != nil {
		return false, apperrors.Wrap(err, "更新合并记录失败")
	}
	return true, nil
}

func toCartEntity(model *CartModel) *cart.Cart {
	items := make([]cart.Item, len(model.Items))
	for i, item := range model.Items {
		items[i] = cart.Item{BookID: item.BookID, Quantity: item.Quantity}
	}
	return &cart.Cart{
		ID:        model.ID,
		UserID:    model.UserID,
		Items:     cart.Normalize(items),
		Version:   model.Version,
		UpdatedAt: model.UpdatedAt,
	}
}
