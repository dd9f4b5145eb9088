// payout-runner 由定时任务（cron/K8s CronJob）调用，一次执行所有到期的分账配置后退出
// 任一配置失败时退出码为1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	apppayout "github.com/xiebiao/ebookstore/internal/application/payout"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
	"github.com/xiebiao/ebookstore/internal/infrastructure/config"
	"github.com/xiebiao/ebookstore/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/ebookstore/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/ebookstore/internal/infrastructure/provider"
	"github.com/xiebiao/ebookstore/pkg/logger"
	"github.com/xiebiao/ebookstore/pkg/metrics"
	"github.com/xiebiao/ebookstore/pkg/mq"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，为空时按BOOKSTORE_ENV查找config目录")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	}).With().Str("app", "payout-runner").Logger()
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("分账批次存在失败")
		stop()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	db, err := mysql.NewDB(cfg, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	redisClient, err := redis.NewClient(cfg, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var publisher application.EventPublisher = mq.NopPublisher{Logger: log}
	if cfg.MQ.Enabled {
		p, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.ExchangeType, log)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ不可用，领域事件只写日志")
		} else {
			defer p.Close()
			publisher = p
		}
	}

	wallet := provider.NewClient(provider.Options{
		BaseURL:         cfg.Payment.BaseURL,
		SecretKey:       cfg.Payment.SecretKey,
		Currency:        cfg.Payment.Currency,
		WalletID:        cfg.Payout.WalletID,
		Timeout:         cfg.Payment.Timeout,
		MaxRetries:      cfg.Payment.MaxRetries,
		BreakerFailures: cfg.Payment.BreakerFailures,
		BreakerTimeout:  cfg.Payment.BreakerTimeout,
	}, log)

	bands := make([]payout.FeeBand, 0, len(cfg.Payout.FeeBands))
	for _, b := range cfg.Payout.FeeBands {
		bands = append(bands, payout.FeeBand{UpTo: b.UpTo, Fee: b.Fee})
	}

	uc := apppayout.NewProcessPayoutUseCase(
		mysql.NewPayoutConfigRepository(db),
		mysql.NewPayoutRecordRepository(db),
		wallet,
		payout.NewFeeSchedule(bands, cfg.Payout.TopFee),
		redis.NewLocker(redisClient),
		mysql.NewTxManager(db),
		publisher,
		cfg.Payout.LockTTL,
		cfg.Payout.MaxAttempts,
		log,
	)

	start := time.Now()
	runs, err := uc.RunDuePayouts(ctx, start)
	for _, r := range runs {
		event := log.Info()
		if r.Error != "" {
			event = log.Error().Str("error", r.Error)
		}
		if r.Result != nil {
			event = event.Int64("amount", r.Result.Amount).Str("reference", r.Result.Reference)
		}
		event.Uint("config_id", r.ConfigID).Msg("分账配置执行结束")
	}
	log.Info().Int("configs", len(runs)).Dur("elapsed", time.Since(start)).Msg("分账批次完成")
	return err
}
