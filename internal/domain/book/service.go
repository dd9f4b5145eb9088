package book

import (
	"context"

	"github.com/samber/lo"
)

// Catalog 目录解析服务
// 购物车和下单都需要把bookID解析成当前目录中的图书
type Catalog interface {
	// Resolve 批量解析，返回 id → Book，解析不到的ID不在结果中
	Resolve(ctx context.Context, ids []uint) (map[uint]*Book, error)

	// MustResolve 所有ID都必须存在，否则返回ErrBookNotFound
	MustResolve(ctx context.Context, ids []uint) (map[uint]*Book, error)

	GetBookByID(ctx context.Context, id uint) (*Book, error)

	ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error)
}

type catalog struct {
	repo Repository
}

// NewCatalog 创建目录解析服务
func NewCatalog(repo Repository) Catalog {
	return &catalog{repo: repo}
}

func (c *catalog) Resolve(ctx context.Context, ids []uint) (map[uint]*Book, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[uint]*Book{}, nil
	}

	books, err := c.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return lo.KeyBy(books, func(b *Book) uint { return b.ID }), nil
}

func (c *catalog) MustResolve(ctx context.Context, ids []uint) (map[uint]*Book, error) {
	resolved, err := c.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	missing := lo.Filter(lo.Uniq(ids), func(id uint, _ int) bool {
		_, ok := resolved[id]
		return !ok
	})
	if len(missing) > 0 {
		return nil, ErrBookNotFound.WithMessage("图书不存在或已下架")
	}
	return resolved, nil
}

func (c *catalog) GetBookByID(ctx context.Context, id uint) (*Book, error) {
	return c.repo.FindByID(ctx, id)
}

func (c *catalog) ListBooks(ctx context.Context, params ListParams) ([]*Book, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	return c.repo.List(ctx, params)
}
