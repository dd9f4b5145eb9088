package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/ebookstore/internal/domain/payout"
	apperrors "github.com/xiebiao/ebookstore/pkg/errors"
)

// payoutGuardID 守护行主键，AutoMigrate时写入
const payoutGuardID = 1

// PayoutConfigModel 分账配置
type PayoutConfigModel struct {
	ID             uint            `gorm:"primaryKey"`
	Name           string          `gorm:"size:100;not null;comment:名称"`
	Destination    string          `gorm:"size:100;not null;comment:收款方"`
	Percentage     decimal.Decimal `gorm:"type:decimal(5,2);not null;comment:分账比例(%)"`
	Frequency      string          `gorm:"size:16;not null;comment:daily|weekly|monthly"`
	IsActive       bool            `gorm:"index;not null;default:true"`
	LastPayoutDate *time.Time      `gorm:"comment:最近一次成功分账时间"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PayoutConfigModel) TableName() string {
	return "payout_configs"
}

// PayoutConfigLockModel 只有一行，配置写操作先锁它
type PayoutConfigLockModel struct {
	ID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (PayoutConfigLockModel) TableName() string {
	return "payout_config_locks"
}

// PayoutRecordModel 分账执行记录
type PayoutRecordModel struct {
	ID            uint      `gorm:"primaryKey"`
	Reference     string    `gorm:"uniqueIndex;size:64;not null;comment:转账幂等键"`
	ConfigID      uint      `gorm:"index;not null"`
	Amount        int64     `gorm:"not null;comment:转账金额(分)"`
	Fee           int64     `gorm:"not null;comment:手续费(分)"`
	BalanceBefore int64     `gorm:"not null;comment:执行前钱包余额(分)"`
	Status        string    `gorm:"size:16;not null"`
	TransferCode  string    `gorm:"size:64"`
	FailureReason string    `gorm:"size:500"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

func (PayoutRecordModel) TableName() string {
	return "payout_records"
}

type payoutConfigRepository struct {
	db *gorm.DB
}

func NewPayoutConfigRepository(db *gorm.DB) payout.ConfigRepository {
	return &payoutConfigRepository{db: db}
}

func (r *payoutConfigRepository) Create(ctx context.Context, cfg *payout.Config) error {
	model := toPayoutConfigModel(cfg)
	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建分账配置失败")
	}
	cfg.ID = model.ID
	cfg.CreatedAt = model.CreatedAt
	cfg.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *payoutConfigRepository) Update(ctx context.Context, cfg *payout.Config) error {
	result := getDB(ctx, r.db).Model(&PayoutConfigModel{}).Where("id = ?", cfg.ID).
		Updates(map[string]interface{}{
			"name":        cfg.Name,
			"destination": cfg.Destination,
			"percentage":  cfg.Percentage,
			"frequency":   string(cfg.Frequency),
			"is_active":   cfg.IsActive,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新分账配置失败")
	}
	if result.RowsAffected == 0 {
		return payout.ErrConfigNotFound
	}
	return nil
}

func (r *payoutConfigRepository) FindByID(ctx context.Context, id uint) (*payout.Config, error) {
	var model PayoutConfigModel
	if err := getDB(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payout.ErrConfigNotFound
		}
		return nil, apperrors.Wrap(err, "查询分账配置失败")
	}
	return toPayoutConfigEntity(&model), nil
}

func (r *payoutConfigRepository) List(ctx context.Context, activeOnly bool) ([]*payout.Config, error) {
	query := getDB(ctx, r.db).Order("id ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var models []PayoutConfigModel
	if err := query.Find(&models).Error; err != nil {
		return nil, apperrors.Wrap(err, "查询分账配置失败")
	}

	configs := make([]*payout.Config, len(models))
	for i := range models {
		configs[i] = toPayoutConfigEntity(&models[i])
	}
	return configs, nil
}

func (r *payoutConfigRepository) SumActivePercentage(ctx context.Context, excludeID uint) (decimal.Decimal, error) {
	query := getDB(ctx, r.db).Model(&PayoutConfigModel{}).Where("is_active = ?", true)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var row struct {
		Total decimal.Decimal
	}
	if err := query.Select("COALESCE(SUM(percentage), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(err, "统计分账比例失败")
	}
	return row.Total, nil
}

func (r *payoutConfigRepository) LockGuard(ctx context.Context) error {
	var guard PayoutConfigLockModel
	err := getDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&guard, payoutGuardID).Error
	if err != nil {
		return apperrors.Wrap(err, "锁定分账配置失败")
	}
	return nil
}

func (r *payoutConfigRepository) MarkPaid(ctx context.Context, id uint, at time.Time) error {
	err := getDB(ctx, r.db).Model(&PayoutConfigModel{}).Where("id = ?", id).
		Update("last_payout_date", at).Error
	if err != nil {
		return apperrors.Wrap(err, "更新分账时间失败")
	}
	return nil
}

type payoutRecordRepository struct {
	db *gorm.DB
}

func NewPayoutRecordRepository(db *gorm.DB) payout.RecordRepository {
	return &payoutRecordRepository{db: db}
}

func (r *payoutRecordRepository) Create(ctx context.Context, rec *payout.Record) error {
	model := toPayoutRecordModel(rec)
	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建分账记录失败")
	}
	rec.ID = model.ID
	rec.CreatedAt = model.CreatedAt
	rec.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *payoutRecordRepository) Update(ctx context.Context, rec *payout.Record) error {
	err := getDB(ctx, r.db).Model(&PayoutRecordModel{}).Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":         string(rec.Status),
			"transfer_code":  rec.TransferCode,
			"failure_reason": rec.FailureReason,
			"updated_at":     time.Now(),
		}).Error
	if err != nil {
		return apperrors.Wrap(err, "更新分账记录失败")
	}
	return nil
}

func (r *payoutRecordRepository) ListByConfig(ctx context.Context, configID uint, limit int) ([]*payout.Record, error) {
	var models []PayoutRecordModel
	err := getDB(ctx, r.db).Where("config_id = ?", configID).
		Order("id DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询分账记录失败")
	}

	records := make([]*payout.Record, len(models))
	for i, m := range models {
		records[i] = &payout.Record{
			ID:            m.ID,
			Reference:     m.Reference,
			ConfigID:      m.ConfigID,
			Amount:        m.Amount,
			Fee:           m.Fee,
			BalanceBefore: m.BalanceBefore,
			Status:        payout.RecordStatus(m.Status),
			TransferCode:  m.TransferCode,
			FailureReason: m.FailureReason,
			CreatedAt:     m.CreatedAt,
			UpdatedAt:     m.UpdatedAt,
		}
	}
	return records, nil
}

func toPayoutConfigModel(c *payout.Config) *PayoutConfigModel {
	return &PayoutConfigModel{
		ID:             c.ID,
		Name:           c.Name,
		Destination:    c.Destination,
		Percentage:     c.Percentage,
		Frequency:      string(c.Frequency),
		IsActive:       c.IsActive,
		LastPayoutDate: c.LastPayoutDate,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toPayoutConfigEntity(m *PayoutConfigModel) *payout.Config {
	return &payout.Config{
		ID:             m.ID,
		Name:           m.Name,
		Destination:    m.Destination,
		Percentage:     m.Percentage,
		Frequency:      payout.Frequency(m.Frequency),
		IsActive:       m.IsActive,
		LastPayoutDate: m.LastPayoutDate,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toPayoutRecordModel(r *payout.Record) *PayoutRecordModel {
	return &PayoutRecordModel{
		ID:            r.ID,
		Reference:     r.Reference,
		ConfigID:      r.ConfigID,
		Amount:        r.Amount,
		Fee:           r.Fee,
		BalanceBefore: r.BalanceBefore,
		Status:        string(r.Status),
		TransferCode:  r.TransferCode,
		FailureReason: r.FailureReason,
	}
}
