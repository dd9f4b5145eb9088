package payout

import (
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

var (
	ErrConfigNotFound = apperrors.New(apperrors.ErrCodePayoutNotFound, "分账配置不存在")

	ErrConfigInactive = apperrors.New(apperrors.ErrCodeValidation, "分账配置未启用")

	ErrInvalidConfig = apperrors.New(apperrors.ErrCodeValidation, "分账配置不合法")

	ErrInvalidFrequency = apperrors.New(apperrors.ErrCodeValidation, "不支持的分账频率")

	ErrInvalidPercentage = apperrors.New(apperrors.ErrCodeValidation, "分账比例必须在0到100之间")

	ErrPercentageExceeded = apperrors.New(apperrors.ErrCodeValidation, "启用配置的分账比例合计超过100%")

	ErrPayoutInProgress = apperrors.New(apperrors.ErrCodePayoutInProgress, "该钱包正在执行分账")

	ErrInsufficientFunds = apperrors.ErrInsufficientFunds
)
