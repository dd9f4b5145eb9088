package mysql

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/ebookstore/internal/domain/order"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// orderSequencer 月度订单序号，一个月一行
// INSERT ... ON DUPLICATE KEY UPDATE在调用方事务内持有行锁，
// 同月并发下单在这里排队，回滚时序号一并回滚
type orderSequencer struct {
	db *gorm.DB
}

func NewOrderSequencer(db *gorm.DB) order.Sequencer {
	return &orderSequencer{db: db}
}

func (s *orderSequencer) Next(ctx context.Context, monthKey string) (int64, error) {
	db := getDB(ctx, s.db)

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "month_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("value + 1")}),
	}).Create(&OrderSequenceModel{MonthKey: monthKey, Value: 1}).Error
	if err != nil {
		return 0, apperrors.Wrap(err, "分配订单序号失败")
	}

	var model OrderSequenceModel
	if err := db.Where("month_key = ?", monthKey).First(&model).Error; err != nil {
		return 0, apperrors.Wrap(err, "读取订单序号失败")
	}
	return model.Value, nil
}

// Reconcile 计数器只升不降
func (s *orderSequencer) Reconcile(ctx context.Context, monthKey string) error {
	db := getDB(ctx, s.db)

	var maxSeq sql.NullInt64
	err := db.Model(&OrderModel{}).
		Select("MAX(CAST(SUBSTRING_INDEX(custom_id, '-', -1) AS UNSIGNED))").
		Where("custom_id LIKE ?", "ORD-"+monthKey+"-%").
		Scan(&maxSeq).Error
	if err != nil {
		return apperrors.Wrap(err, "查询已用订单序号失败")
	}
	if !maxSeq.Valid {
		return nil
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "month_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("GREATEST(value, ?)", maxSeq.Int64)}),
	}).Create(&OrderSequenceModel{MonthKey: monthKey, Value: maxSeq.Int64}).Error
	if err != nil {
		return apperrors.Wrap(err, "校准订单序号失败")
	}
	return nil
}
