package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/ebookstore/internal/application/delivery"
	"github.com/xiebiao/ebookstore/internal/interface/http/dto"
	"github.com/xiebiao/ebookstore/internal/interface/http/middleware"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// DownloadHandler 电子书下载
type DownloadHandler struct {
	issueDownload *delivery.IssueDownloadUseCase
}

func NewDownloadHandler(issueDownload *delivery.IssueDownloadUseCase) *DownloadHandler {
	return &DownloadHandler{issueDownload: issueDownload}
}

// IssueDownload 申请下载链接
// @Summary      申请下载链接
// @Description  订单已完成且包含该图书时签发短时有效的签名链接
// @Tags         下载
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.DownloadRequest true "订单与图书"
// @Success      200 {object} response.Response{data=delivery.DownloadDTO}
// @Failure      403 {object} response.Response "无权下载"
// @Failure      404 {object} response.Response "订单不存在"
// @Router       /api/v1/download [post]
func (h *DownloadHandler) IssueDownload(c *gin.Context) {
	var req dto.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.issueDownload.Execute(c.Request.Context(), delivery.IssueDownloadRequest{
		Requester: middleware.GetRequester(c),
		OrderID:   req.OrderID,
		BookID:    req.BookID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
