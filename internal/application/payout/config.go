package payout

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xiebiao/ebookstore/internal/application"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
)

// ConfigUseCase 分账配置管理（仅管理员）
//
// 新增和修改都先锁定守护行再汇总启用配置的比例，
// 并发写入被串行化，合计超过100时什么都不落库。
type ConfigUseCase struct {
	configRepo payout.ConfigRepository
	txManager  application.TxManager
	logger     zerolog.Logger
}

func NewConfigUseCase(configRepo payout.ConfigRepository, txManager application.TxManager, logger zerolog.Logger) *ConfigUseCase {
	return &ConfigUseCase{
		configRepo: configRepo,
		txManager:  txManager,
		logger:     logger.With().Str("component", "payout_config").Logger(),
	}
}

type CreateConfigRequest struct {
	Name        string
	Destination string
	Percentage  decimal.Decimal
	Frequency   string
}

// UpdateConfigRequest 只修改非nil字段
type UpdateConfigRequest struct {
	ID          uint
	Name        *string
	Destination *string
	Percentage  *decimal.Decimal
	Frequency   *string
	IsActive    *bool
}

func (uc *ConfigUseCase) Create(ctx context.Context, req CreateConfigRequest) (*ConfigDTO, error) {
	freq, err := payout.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, err
	}
	cfg, err := payout.NewConfig(req.Name, req.Destination, req.Percentage, freq)
	if err != nil {
		return nil, err
	}

	err = uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		if err := uc.configRepo.LockGuard(txCtx); err != nil {
			return err
		}
		others, err := uc.configRepo.SumActivePercentage(txCtx, 0)
		if err != nil {
			return err
		}
		if err := payout.CheckActiveTotal(others, cfg.Percentage); err != nil {
			return err
		}
		return uc.configRepo.Create(txCtx, cfg)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Uint("config_id", cfg.ID).Str("percentage", cfg.Percentage.String()).Msg("分账配置已创建")
	return toConfigDTO(cfg), nil
}

func (uc *ConfigUseCase) Update(ctx context.Context, req UpdateConfigRequest) (*ConfigDTO, error) {
	var updated *payout.Config
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		if err := uc.configRepo.LockGuard(txCtx); err != nil {
			return err
		}
		cfg, err := uc.configRepo.FindByID(txCtx, req.ID)
		if err != nil {
			return err
		}
		if err := apply(cfg, req); err != nil {
			return err
		}

		if cfg.IsActive {
			others, err := uc.configRepo.SumActivePercentage(txCtx, cfg.ID)
			if err != nil {
				return err
			}
			if err := payout.CheckActiveTotal(others, cfg.Percentage); err != nil {
				return err
			}
		}

		cfg.UpdatedAt = time.Now()
		if err := uc.configRepo.Update(txCtx, cfg); err != nil {
			return err
		}
		updated = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Uint("config_id", updated.ID).Bool("active", updated.IsActive).Msg("分账配置已更新")
	return toConfigDTO(updated), nil
}

func apply(cfg *payout.Config, req UpdateConfigRequest) error {
	if req.Name != nil {
		cfg.Name = strings.TrimSpace(*req.Name)
	}
	if req.Destination != nil {
		cfg.Destination = strings.TrimSpace(*req.Destination)
	}
	if req.Percentage != nil {
		cfg.Percentage = *req.Percentage
	}
	if req.Frequency != nil {
		freq, err := payout.ParseFrequency(*req.Frequency)
		if err != nil {
			return err
		}
		cfg.Frequency = freq
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}
	return cfg.Validate()
}

func (uc *ConfigUseCase) List(ctx context.Context) ([]*ConfigDTO, error) {
	configs, err := uc.configRepo.List(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]*ConfigDTO, 0, len(configs))
	for _, c := range configs {
		out = append(out, toConfigDTO(c))
	}
	return out, nil
}
