package book

import (
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

var (
	// ErrBookNotFound 图书不存在
	ErrBookNotFound = apperrors.New(apperrors.ErrCodeBookNotFound, "图书不存在")

	// ErrAssetMissing 图书没有可下载的文件
	ErrAssetMissing = apperrors.New(apperrors.ErrCodeNotFound, "该图书暂无可下载文件")
)
