package cart

import (
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

var (
	ErrInvalidQuantity = apperrors.New(apperrors.ErrCodeValidation, "购买数量必须大于0")

	ErrInvalidItem = apperrors.New(apperrors.ErrCodeValidation, "购物车条目不合法")

	ErrDuplicateItem = apperrors.New(apperrors.ErrCodeValidation, "购物车中同一本书只能出现一次")

	// ErrVersionConflict 客户端提交的版本号已过期
	ErrVersionConflict = apperrors.New(apperrors.ErrCodeCartVersion, "购物车已在其他设备上更新")

	ErrMissingGuestID = apperrors.New(apperrors.ErrCodeValidation, "缺少游客标识")
)
