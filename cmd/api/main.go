package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/xiebiao/ebookstore/internal/application"
	appbook "github.com/xiebiao/ebookstore/internal/application/book"
	appcart "github.com/xiebiao/ebookstore/internal/application/cart"
	"github.com/xiebiao/ebookstore/internal/application/delivery"
	apporder "github.com/xiebiao/ebookstore/internal/application/order"
	apppayment "github.com/xiebiao/ebookstore/internal/application/payment"
	apppayout "github.com/xiebiao/ebookstore/internal/application/payout"
	appuser "github.com/xiebiao/ebookstore/internal/application/user"
	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/payout"
	"github.com/xiebiao/ebookstore/internal/domain/user"
	"github.com/xiebiao/ebookstore/internal/infrastructure/config"
	"github.com/xiebiao/ebookstore/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/ebookstore/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/ebookstore/internal/infrastructure/provider"
	"github.com/xiebiao/ebookstore/internal/infrastructure/storage"
	"github.com/xiebiao/ebookstore/internal/interface/http/handler"
	"github.com/xiebiao/ebookstore/internal/interface/http/middleware"
	"github.com/xiebiao/ebookstore/internal/interface/http/router"
	"github.com/xiebiao/ebookstore/pkg/jwt"
	"github.com/xiebiao/ebookstore/pkg/logger"
	"github.com/xiebiao/ebookstore/pkg/metrics"
	"github.com/xiebiao/ebookstore/pkg/mq"
	"github.com/xiebiao/ebookstore/pkg/tracing"
)

// @title           电子书商城 API
// @version         1.0
// @description     购物车、下单、支付回调、下载与分账
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	})
	log.Info().Int("port", cfg.Server.Port).Str("mode", cfg.Server.Mode).Msg("配置加载成功")

	metrics.InitMetrics()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			Environment: cfg.Server.Mode,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("初始化链路追踪失败")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn().Err(err).Msg("关闭链路追踪失败")
			}
		}()
	}

	engine, cleanup, err := newApp(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("组装应用失败")
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP服务启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP服务异常退出")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("收到退出信号，开始优雅关闭")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("优雅关闭超时")
	}
}

// newApp 手动依赖注入
// Repository ← Domain Service ← UseCase ← Handler ← Router
func newApp(cfg *config.Config, log zerolog.Logger) (*gin.Engine, func(), error) {
	db, err := mysql.Shared(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := redis.Shared(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	allowList, err := cfg.Payment.AllowedPrefixes()
	if err != nil {
		return nil, nil, err
	}

	publisher, closePublisher := newPublisher(cfg, log)
	cleanup := func() {
		closePublisher()
		if err := redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭Redis失败")
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	presigner, err := storage.NewS3Presigner(context.Background(), cfg.Storage, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// 基础设施层
	txManager := mysql.NewTxManager(db)
	userRepo := mysql.NewUserRepository(db)
	bookRepo := mysql.NewBookRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	sequencer := mysql.NewOrderSequencer(db)
	cartRepo := mysql.NewCartRepository(db)
	eventRepo := mysql.NewPaymentEventRepository(db)
	payoutConfigRepo := mysql.NewPayoutConfigRepository(db)
	payoutRecordRepo := mysql.NewPayoutRecordRepository(db)
	sessionStore := redis.NewSessionStore(redisClient)
	guestStore := redis.NewGuestCartStore(redisClient)
	locker := redis.NewLocker(redisClient)
	paygate := newProviderClient(cfg, log)
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)

	// 领域层
	userService := user.NewService(userRepo)
	catalog := book.NewCatalog(bookRepo)

	// 应用层
	mergeCart := appcart.NewMergeGuestCartUseCase(cartRepo, guestStore, locker, txManager, cfg.Cart.MergeLockTTL, log)
	transitioner := apporder.NewTransitioner(orderRepo, cartRepo, txManager, publisher, log)
	createOrder := apporder.NewCreateOrderUseCase(orderRepo, catalog, sequencer, txManager, publisher, log)
	checkout := apppayment.NewCheckoutUseCase(createOrder, transitioner, paygate,
		cfg.Payment.CallbackURL, cfg.Payment.CheckoutTimeout, log)
	webhook := apppayment.NewWebhookUseCase(orderRepo, eventRepo, transitioner, txManager,
		cfg.Payment.WebhookSecret, allowList, log)
	processPayout := apppayout.NewProcessPayoutUseCase(payoutConfigRepo, payoutRecordRepo, paygate,
		feeSchedule(cfg.Payout), locker, txManager, publisher, cfg.Payout.LockTTL, cfg.Payout.MaxAttempts, log)

	// 接口层
	handlers := router.Handlers{
		User: handler.NewUserHandler(
			appuser.NewRegisterUseCase(userService),
			appuser.NewLoginUseCase(userService, jwtManager, sessionStore, mergeCart, log),
			appuser.NewLogoutUseCase(sessionStore, cfg.JWT.AccessTokenExpire),
		),
		Book: handler.NewBookHandler(appbook.NewListBooksUseCase(catalog), appbook.NewGetBookUseCase(catalog)),
		Cart: handler.NewCartHandler(
			appcart.NewGetCartUseCase(cartRepo, catalog),
			appcart.NewReplaceCartUseCase(cartRepo, catalog, txManager),
			mergeCart,
			appcart.NewGuestCartUseCase(guestStore, catalog, cfg.Cart.GuestTTL),
		),
		Order: handler.NewOrderHandler(
			checkout,
			apporder.NewListOrdersUseCase(orderRepo),
			apporder.NewGetOrderUseCase(orderRepo),
			transitioner,
		),
		Payment: handler.NewPaymentHandler(webhook, apppayment.NewVerifyUseCase(orderRepo, paygate, transitioner, log)),
		Download: handler.NewDownloadHandler(
			delivery.NewIssueDownloadUseCase(orderRepo, catalog, presigner, cfg.Storage.URLExpiry, log),
		),
		Payout: handler.NewPayoutHandler(apppayout.NewConfigUseCase(payoutConfigRepo, txManager, log), processPayout),
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, sessionStore)

	opts := router.Options{
		Mode:           cfg.Server.Mode,
		TrustedProxies: cfg.Server.TrustedProxies,
		EnableSwagger:  cfg.Server.Mode != gin.ReleaseMode,
		Logger:         log,
	}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
	}
	engine, err := router.New(opts, handlers, authMiddleware)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}

// newPublisher mq.enabled=false或连接失败时退回只记日志的发布者
func newPublisher(cfg *config.Config, log zerolog.Logger) (application.EventPublisher, func()) {
	if !cfg.MQ.Enabled {
		return mq.NopPublisher{Logger: log}, func() {}
	}
	p, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange, cfg.MQ.ExchangeType, log)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ不可用，领域事件只写日志")
		return mq.NopPublisher{Logger: log}, func() {}
	}
	return p, func() { p.Close() }
}

func newProviderClient(cfg *config.Config, log zerolog.Logger) *provider.Client {
	return provider.NewClient(provider.Options{
		BaseURL:         cfg.Payment.BaseURL,
		SecretKey:       cfg.Payment.SecretKey,
		Currency:        cfg.Payment.Currency,
		WalletID:        cfg.Payout.WalletID,
		Timeout:         cfg.Payment.Timeout,
		MaxRetries:      cfg.Payment.MaxRetries,
		BreakerFailures: cfg.Payment.BreakerFailures,
		BreakerTimeout:  cfg.Payment.BreakerTimeout,
	}, log)
}

func feeSchedule(cfg config.PayoutConfig) payout.FeeSchedule {
	bands := make([]payout.FeeBand, 0, len(cfg.FeeBands))
	for _, b := range cfg.FeeBands {
		bands = append(bands, payout.FeeBand{UpTo: b.UpTo, Fee: b.Fee})
	}
	return payout.NewFeeSchedule(bands, cfg.TopFee)
}
