package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/xiebiao/ebookstore/internal/domain/book"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// bookRepository 图书目录（只读）
type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) book.Repository {
	return &bookRepository{db: db}
}

func (r *bookRepository) FindByID(ctx context.Context, id uint) (*book.Book, error) {
	var model BookModel
	err := getDB(ctx, r.db).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrBookNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithErr(err)
	}
	return toBookEntity(&model), nil
}

// FindByIDs 一次IN查询，已下架（软删除）的不返回
func (r *bookRepository) FindByIDs(ctx context.Context, ids []uint) ([]*book.Book, error) {
	if len(ids) == 0 {
		return []*book.Book{}, nil
	}

	var models []BookModel
	if err := getDB(ctx, r.db).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, apperrors.ErrDatabaseError.WithErr(err)
	}

	books := make([]*book.Book, len(models))
	for i := range models {
		books[i] = toBookEntity(&models[i])
	}
	return books, nil
}

// List 分页查询，支持标题/作者模糊搜索
func (r *bookRepository) List(ctx context.Context, params book.ListParams) ([]*book.Book, int64, error) {
	var (
		models []BookModel
		total  int64
	)

	query := getDB(ctx, r.db).Model(&BookModel{})
	if params.Keyword != "" {
		keyword := "%" + params.Keyword + "%"
		query = query.Where("title LIKE ? OR author LIKE ?", keyword, keyword)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithErr(err)
	}

	switch params.SortBy {
	case "price_asc":
		query = query.Order("price ASC")
	case "price_desc":
		query = query.Order("price DESC")
	default:
		query = query.Order("created_at DESC")
	}

	err := query.Limit(params.PageSize).Offset(offset(params.Page, params.PageSize)).Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithErr(err)
	}

	books := make([]*book.Book, len(models))
	for i := range models {
		books[i] = toBookEntity(&models[i])
	}
	return books, total, nil
}

func toBookEntity(model *BookModel) *book.Book {
	return &book.Book{
		ID:          model.ID,
		Title:       model.Title,
		Author:      model.Author,
		Price:       model.Price,
		CoverURL:    model.CoverURL,
		Description: model.Description,
		AssetKey:    model.AssetKey,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}
