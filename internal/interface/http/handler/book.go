package handler

import (
	"github.com/gin-gonic/gin"

	appbook "github.com/xiebiao/ebookstore/internal/application/book"
	"github.com/xiebiao/ebookstore/internal/interface/http/dto"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// BookHandler 图书目录（只读）
type BookHandler struct {
	listBooksUseCase *appbook.ListBooksUseCase
	getBookUseCase   *appbook.GetBookUseCase
}

func NewBookHandler(listBooksUseCase *appbook.ListBooksUseCase, getBookUseCase *appbook.GetBookUseCase) *BookHandler {
	return &BookHandler{
		listBooksUseCase: listBooksUseCase,
		getBookUseCase:   getBookUseCase,
	}
}

// ListBooks 图书列表
// @Summary      图书列表
// @Description  分页查询，支持标题/作者搜索和价格排序
// @Tags         图书
// @Produce      json
// @Param        page      query int    false "页码" default(1)
// @Param        page_size query int    false "每页数量" default(20)
// @Param        keyword   query string false "搜索关键词"
// @Param        sort_by   query string false "price_asc | price_desc | created_at_desc"
// @Success      200 {object} response.Response{data=appbook.ListBooksResponse}
// @Failure      400 {object} response.Response "参数错误"
// @Router       /api/v1/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	var query dto.ListBooksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.listBooksUseCase.Execute(c.Request.Context(), appbook.ListBooksRequest{
		Page:     query.Page,
		PageSize: query.PageSize,
		Keyword:  query.Keyword,
		SortBy:   query.SortBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPage(c, result.List, result.Total, result.Page, result.PageSize)
}

// GetBook 图书详情
// @Summary      图书详情
// @Tags         图书
// @Produce      json
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=appbook.BookDetail}
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.getBookUseCase.Execute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
