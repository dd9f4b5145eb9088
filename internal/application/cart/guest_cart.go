package cart

import (
	"context"
	"time"

	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
)

// GuestCartUseCase 游客购物车（未登录时服务端托管的本地购物车）
type GuestCartUseCase struct {
	store   cart.GuestStore
	catalog book.Catalog
	ttl     time.Duration
}

func NewGuestCartUseCase(store cart.GuestStore, catalog book.Catalog, ttl time.Duration) *GuestCartUseCase {
	return &GuestCartUseCase{store: store, catalog: catalog, ttl: ttl}
}

// Get 查询游客购物车
func (uc *GuestCartUseCase) Get(ctx context.Context, guestID string) (*CartDTO, error) {
	if guestID == "" {
		return nil, cart.ErrMissingGuestID
	}
	quantities, err := uc.store.Get(ctx, guestID)
	if err != nil {
		return nil, err
	}

	v, err := resolve(ctx, uc.catalog, cart.FromQuantities(quantities))
	if err != nil {
		return nil, err
	}
	v.GuestID = guestID
	return toDTO(v), nil
}

// Replace 整体替换游客购物车并刷新过期时间
func (uc *GuestCartUseCase) Replace(ctx context.Context, guestID string, inputs []ItemInput) (*CartDTO, error) {
	if guestID == "" {
		return nil, cart.ErrMissingGuestID
	}
	items := toItems(inputs)
	if err := cart.ValidateItems(items); err != nil {
		return nil, err
	}
	if _, err := uc.catalog.MustResolve(ctx, cart.BookIDs(items)); err != nil {
		return nil, err
	}

	if err := uc.store.Replace(ctx, guestID, cart.Normalize(items), uc.ttl); err != nil {
		return nil, err
	}
	return uc.Get(ctx, guestID)
}
