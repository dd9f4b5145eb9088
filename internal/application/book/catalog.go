package book

import (
	"context"
	"time"

	"github.com/xiebiao/ebookstore/internal/domain/book"
)

// ListBooksUseCase 图书列表，只读
type ListBooksUseCase struct {
	catalog book.Catalog
}

func NewListBooksUseCase(catalog book.Catalog) *ListBooksUseCase {
	return &ListBooksUseCase{catalog: catalog}
}

type ListBooksRequest struct {
	Page     int
	PageSize int
	Keyword  string
	SortBy   string // price_asc | price_desc | created_at_desc
}

// BookListItem 列表项不含简介
type BookListItem struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Price     int64  `json:"price"`
	CoverURL  string `json:"cover_url"`
	CreatedAt string `json:"created_at"`
}

type ListBooksResponse struct {
	List     []BookListItem `json:"list"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func (uc *ListBooksUseCase) Execute(ctx context.Context, req ListBooksRequest) (*ListBooksResponse, error) {
	params := book.ListParams{
		Page:     req.Page,
		PageSize: req.PageSize,
		Keyword:  req.Keyword,
		SortBy:   req.SortBy,
	}
	// 分页参数的默认值由Catalog统一处理，这里回填实际生效的值
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	books, total, err := uc.catalog.ListBooks(ctx, params)
	if err != nil {
		return nil, err
	}

	list := make([]BookListItem, len(books))
	for i, b := range books {
		list[i] = BookListItem{
			ID:        b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Price:     b.Price,
			CoverURL:  b.CoverURL,
			CreatedAt: b.CreatedAt.Format(time.DateTime),
		}
	}
	return &ListBooksResponse{List: list, Total: total, Page: params.Page, PageSize: params.PageSize}, nil
}

// GetBookUseCase 图书详情
type GetBookUseCase struct {
	catalog book.Catalog
}

func NewGetBookUseCase(catalog book.Catalog) *GetBookUseCase {
	return &GetBookUseCase{catalog: catalog}
}

// BookDetail 详情不暴露文件对象键
type BookDetail struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Price        int64  `json:"price"`
	CoverURL     string `json:"cover_url"`
	Description  string `json:"description"`
	Downloadable bool   `json:"downloadable"`
}

func (uc *GetBookUseCase) Execute(ctx context.Context, id uint) (*BookDetail, error) {
	b, err := uc.catalog.GetBookByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BookDetail{
		ID:           b.ID,
		Title:        b.Title,
		Author:       b.Author,
		Price:        b.Price,
		CoverURL:     b.CoverURL,
		Description:  b.Description,
		Downloadable: b.HasAsset(),
	}, nil
}
