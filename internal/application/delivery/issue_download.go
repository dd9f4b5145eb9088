// Package delivery 已购电子书的下载授权
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
	"github.com/xiebiao/ebookstore/pkg/metrics"
)

// DefaultExpiry 下载链接有效期
const DefaultExpiry = 5 * time.Minute

// URLSigner 生成私有对象的限时下载地址
type URLSigner interface {
	PresignGet(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

// IssueDownloadUseCase 签发下载链接
type IssueDownloadUseCase struct {
	orderRepo order.Repository
	catalog   book.Catalog
	signer    URLSigner
	expiry    time.Duration
	logger    zerolog.Logger
}

func NewIssueDownloadUseCase(orderRepo order.Repository, catalog book.Catalog, signer URLSigner, expiry time.Duration, logger zerolog.Logger) *IssueDownloadUseCase {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &IssueDownloadUseCase{
		orderRepo: orderRepo,
		catalog:   catalog,
		signer:    signer,
		expiry:    expiry,
		logger:    logger.With().Str("component", "delivery").Logger(),
	}
}

type IssueDownloadRequest struct {
	Requester application.Requester
	OrderID   uint
	BookID    uint
}

type DownloadDTO struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

var errNotEntitled = apperrors.ErrForbidden.WithMessage("无权下载该图书")

// Execute 权限不满足时一律返回同一个Forbidden，不区分订单归属、图书与支付状态
func (uc *IssueDownloadUseCase) Execute(ctx context.Context, req IssueDownloadRequest) (*DownloadDTO, error) {
	o, err := uc.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	admin := req.Requester.IsAdmin()
	if !admin && !o.IsOwnedBy(req.Requester.UserID) {
		return nil, errNotEntitled
	}
	if _, ok := o.Item(req.BookID); !ok {
		return nil, errNotEntitled
	}
	if !admin && o.Status != order.OrderStatusCompleted {
		return nil, errNotEntitled
	}

	b, err := uc.catalog.GetBookByID(ctx, req.BookID)
	if errors.Is(err, book.ErrBookNotFound) {
		return nil, book.ErrAssetMissing
	}
	if err != nil {
		return nil, err
	}
	if !b.HasAsset() {
		return nil, book.ErrAssetMissing
	}

	url, err := uc.signer.PresignGet(ctx, b.AssetKey, b.DownloadFilename(), uc.expiry)
	if err != nil {
		uc.logger.Error().Err(err).Uint("order_id", o.ID).Uint("book_id", b.ID).Msg("签发下载链接失败")
		return nil, apperrors.Wrap(err, "生成下载链接失败")
	}

	metrics.IncCounter(metrics.DownloadsIssuedTotal)
	uc.logger.Info().
		Uint("order_id", o.ID).
		Uint("book_id", b.ID).
		Uint("requester", req.Requester.UserID).
		Msg("已签发下载链接")

	return &DownloadDTO{URL: url, ExpiresIn: int64(uc.expiry / time.Second)}, nil
}
