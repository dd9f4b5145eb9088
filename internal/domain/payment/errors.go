package payment

import (
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

var (
	ErrMalformedEvent = apperrors.New(apperrors.ErrCodeValidation, "回调内容格式错误")

	// ErrSenderNotAllowed 回调来源不在白名单
	ErrSenderNotAllowed = apperrors.New(apperrors.ErrCodeForbidden, "回调来源不受信任")
)
