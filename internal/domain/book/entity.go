package book

import (
	"path"
	"strings"
	"time"
)

// Book 图书（目录由外部CMS维护，这里只读）
// 价格使用int64存储最小货币单位
type Book struct {
	ID          uint
	Title       string
	Author      string
	Price       int64
	CoverURL    string
	Description string
	// AssetKey 电子书文件在私有存储桶中的对象键，不对外暴露
	AssetKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DownloadFilename 下载时建议的文件名：<书名>.<扩展名>
// 扩展名取自AssetKey，缺省为pdf
func (b *Book) DownloadFilename() string {
	ext := strings.TrimPrefix(path.Ext(b.AssetKey), ".")
	if ext == "" {
		ext = "pdf"
	}

	title := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '/', '\r', '\n':
			return '_'
		}
		return r
	}, strings.TrimSpace(b.Title))
	if title == "" {
		title = "book"
	}
	return title + "." + ext
}

// HasAsset 是否已上传电子书文件
func (b *Book) HasAsset() bool {
	return b.AssetKey != ""
}
