package cart

import (
	"context"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
)

// GetCartUseCase 查询登录用户购物车
type GetCartUseCase struct {
	cartRepo cart.Repository
	catalog  book.Catalog
}

func NewGetCartUseCase(cartRepo cart.Repository, catalog book.Catalog) *GetCartUseCase {
	return &GetCartUseCase{cartRepo: cartRepo, catalog: catalog}
}

func (uc *GetCartUseCase) Execute(ctx context.Context, userID uint) (*CartDTO, error) {
	c, err := uc.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return view(ctx, uc.catalog, c)
}

func view(ctx context.Context, catalog book.Catalog, c *cart.Cart) (*CartDTO, error) {
	v, err := resolve(ctx, catalog, c.Items)
	if err != nil {
		return nil, err
	}
	v.UserID = c.UserID
	v.Version = c.Version
	return toDTO(v), nil
}

// ReplaceCartUseCase 整体替换购物车
type ReplaceCartUseCase struct {
	cartRepo  cart.Repository
	catalog   book.Catalog
	txManager application.TxManager
}

func NewReplaceCartUseCase(cartRepo cart.Repository, catalog book.Catalog, txManager application.TxManager) *ReplaceCartUseCase {
	return &ReplaceCartUseCase{cartRepo: cartRepo, catalog: catalog, txManager: txManager}
}

// ReplaceCartRequest ExpectedVersion为nil时不做版本校验
type ReplaceCartRequest struct {
	UserID          uint
	Items           []ItemInput
	ExpectedVersion *int64
}

// Execute 整体替换
// 版本不一致时返回ErrVersionConflict，同时返回服务端当前购物车供客户端回滚
func (uc *ReplaceCartUseCase) Execute(ctx context.Context, req ReplaceCartRequest) (*CartDTO, error) {
	items := toItems(req.Items)
	if err := cart.ValidateItems(items); err != nil {
		return nil, err
	}
	if _, err := uc.catalog.MustResolve(ctx, cart.BookIDs(items)); err != nil {
		return nil, err
	}

	var (
		saved    *cart.Cart
		conflict bool
	)
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		c, err := uc.cartRepo.Lock(txCtx, req.UserID)
		if err != nil {
			return err
		}
		if req.ExpectedVersion != nil && *req.ExpectedVersion != c.Version {
			saved, conflict = c, true
			return nil
		}

		c.Replace(items)
		if err := uc.cartRepo.Save(txCtx, c); err != nil {
			return err
		}
		saved = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto, err := view(ctx, uc.catalog, saved)
	if err != nil {
		return nil, err
	}
	if conflict {
		return dto, cart.ErrVersionConflict
	}
	return dto, nil
}
