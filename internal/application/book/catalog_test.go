package book

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/ebookstore/internal/application/apptest"
	"github.com/xiebiao/ebookstore/internal/domain/book"
)

func newCatalog() book.Catalog {
	return book.NewCatalog(apptest.NewBooks(
		&book.Book{ID: 1, Title: "Go语言圣经", Author: "Donovan", Price: 1000, AssetKey: "books/1.pdf"},
		&book.Book{ID: 2, Title: "SICP", Author: "Abelson", Price: 2500},
	))
}

func TestListBooks_DefaultPaging(t *testing.T) {
	uc := NewListBooksUseCase(newCatalog())

	resp, err := uc.Execute(context.Background(), ListBooksRequest{PageSize: 1000})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize, "超过上限的pageSize应回落到默认值")
	assert.Equal(t, int64(2), resp.Total)
	require.Len(t, resp.List, 2)
	assert.Equal(t, "Go语言圣经", resp.List[0].Title)
}

func TestGetBook(t *testing.T) {
	uc := NewGetBookUseCase(newCatalog())

	detail, err := uc.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, detail.Downloadable)

	detail, err = uc.Execute(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, detail.Downloadable)

	_, err = uc.Execute(context.Background(), 404)
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}
