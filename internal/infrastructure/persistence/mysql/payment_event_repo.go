package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/ebookstore/internal/domain/payment"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// paymentEventRepository 回调去重表
type paymentEventRepository struct {
	db *gorm.DB
}

func NewPaymentEventRepository(db *gorm.DB) payment.EventRepository {
	return &paymentEventRepository{db: db}
}

// Record INSERT IGNORE语义，inserted为false表示该事件已处理过
func (r *paymentEventRepository) Record(ctx context.Context, rec *payment.EventRecord) (bool, error) {
	processedAt := rec.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	result := getDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&PaymentEventModel{
		EventID:     rec.EventID,
		Reference:   rec.Reference,
		Type:        rec.Type,
		Success:     rec.Success,
		ProcessedAt: processedAt,
	})
	if result.Error != nil {
		return false, apperrors.Wrap(result.Error, "记录支付事件失败")
	}
	return result.RowsAffected == 1, nil
}
