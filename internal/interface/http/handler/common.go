package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// bindFailed 参数绑定失败统一返回40002
func bindFailed(c *gin.Context, err error) {
	response.Error(c, apperrors.ErrBindError.WithMessage("参数错误: "+err.Error()))
}

// pathID 解析路径中的自增ID
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, apperrors.ErrInvalidParams.WithMessage("无效的ID"))
		return 0, false
	}
	return uint(id), true
}
