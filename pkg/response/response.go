package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// Response 统一响应结构
// Code为0表示成功，否则为业务错误码
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 资源创建成功（201）
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "created",
		Data:    data,
	})
}

// Error 错误响应
// HTTP状态码由错误码推导；内部错误只写日志，不返回给客户端
func Error(c *gin.Context, err error) {
	ErrorWithData(c, err, nil)
}

// ErrorWithData 错误响应并附带数据
// 用于乐观更新冲突时返回服务端权威状态，供客户端回滚
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	appErr := apperrors.GetAppError(err)
	status := appErr.HTTPStatus()

	logger := zerolog.Ctx(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(appErr.Err).Int("code", appErr.Code).Str("path", c.FullPath()).Msg(appErr.Message)
	} else if appErr.Err != nil {
		logger.Warn().Err(appErr.Err).Int("code", appErr.Code).Str("path", c.FullPath()).Msg(appErr.Message)
	}

	c.JSON(status, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Data:    data,
	})
}

// ErrorWithCode 自定义错误码和消息
func ErrorWithCode(c *gin.Context, code int, message string) {
	Error(c, apperrors.New(code, message))
}

// PageData 分页数据
type PageData struct {
	List       interface{} `json:"list"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// NewPageData 创建分页数据
func NewPageData(list interface{}, total int64, page, pageSize int) *PageData {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize != 0 {
			totalPages++
		}
	}

	return &PageData{
		List:       list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, NewPageData(list, total, page, pageSize))
}
