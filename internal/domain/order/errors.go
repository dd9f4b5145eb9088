package order

import (
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// 订单领域错误定义
var (
	ErrOrderNotFound = apperrors.New(apperrors.ErrCodeOrderNotFound, "订单不存在")

	// ErrInvalidStatusTransition 目标状态不是终态
	ErrInvalidStatusTransition = apperrors.New(apperrors.ErrCodeInvalidTransition, "订单状态不允许此操作")

	ErrInvalidStatus = apperrors.New(apperrors.ErrCodeInvalidParams, "未知的订单状态")

	// ErrDuplicateOrderNo 订单号唯一索引冲突，重试耗尽后返回
	ErrDuplicateOrderNo = apperrors.New(apperrors.ErrCodeDuplicateOrderNo, "订单号冲突，请重试")

	ErrInvalidOrderNo = apperrors.New(apperrors.ErrCodeInvalidParams, "订单号格式不正确")

	ErrInvalidOrderItems = apperrors.New(apperrors.ErrCodeValidation, "订单明细不能为空")

	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeValidation, "购买数量必须大于0")
)
