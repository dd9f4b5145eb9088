package book

import (
	"context"
)

// Repository 图书仓储接口
// 目录是外部系统的只读视图，这里只有查询
type Repository interface {
	// FindByID 不存在时返回ErrBookNotFound
	FindByID(ctx context.Context, id uint) (*Book, error)

	// FindByIDs 批量查询，不存在的ID直接缺席，不报错
	FindByIDs(ctx context.Context, ids []uint) ([]*Book, error)

	// List 分页查询
	List(ctx context.Context, params ListParams) ([]*Book, int64, error)
}

// ListParams 列表查询参数
type ListParams struct {
	Page     int    // 页码(从1开始)
	PageSize int    // 每页数量
	Keyword  string // 搜索标题、作者
	SortBy   string // price_asc | price_desc | created_at_desc
}
