//go:build wireinject
// +build wireinject

// Wire依赖注入配置，与main.go中的newApp保持同一条依赖链
// 生成：wire gen ./cmd/api

package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/xiebiao/ebookstore/internal/application"
	appbook "github.com/xiebiao/ebookstore/internal/application/book"
	appcart "github.com/xiebiao/ebookstore/internal/application/cart"
	"github.com/xiebiao/ebookstore/internal/application/delivery"
	apporder "github.com/xiebiao/ebookstore/internal/application/order"
	apppayment "github.com/xiebiao/ebookstore/internal/application/payment"
	apppayout "github.com/xiebiao/ebookstore/internal/application/payout"
	appuser "github.com/xiebiao/ebookstore/internal/application/user"
	"github.com/xiebiao/ebookstore/internal/domain/book"
	"github.com/xiebiao/ebookstore/internal/domain/cart"
	"github.com/xiebiao/ebookstore/internal/domain/order"
	"github.com/xiebiao/ebookstore/internal/domain/payment"
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
)

// infrastructureSet 配置、日志、连接、外部服务
var infrastructureSet = wire.NewSet(
	config.Load,
	provideLogger,
	provideDB,
	provideRedis,
	newPublisher,
	newProviderClient,
	wire.Bind(new(payment.Gateway), new(*provider.Client)),
	wire.Bind(new(payout.Wallet), new(*provider.Client)),
	provideURLSigner,
	wire.Bind(new(delivery.URLSigner), new(*storage.S3Presigner)),
)

// repositorySet MySQL仓储与Redis存储
var repositorySet = wire.NewSet(
	mysql.NewTxManager,
	wire.Bind(new(application.TxManager), new(*mysql.TxManager)),
	mysql.NewUserRepository,
	mysql.NewBookRepository,
	mysql.NewOrderRepository,
	mysql.NewOrderSequencer,
	mysql.NewCartRepository,
	mysql.NewPaymentEventRepository,
	mysql.NewPayoutConfigRepository,
	mysql.NewPayoutRecordRepository,
	redis.NewSessionStore,
	wire.Bind(new(appuser.SessionStore), new(*redis.SessionStore)),
	wire.Bind(new(middleware.TokenBlacklist), new(*redis.SessionStore)),
	redis.NewGuestCartStore,
	wire.Bind(new(cart.GuestStore), new(*redis.GuestCartStore)),
	redis.NewLocker,
	wire.Bind(new(application.Locker), new(*redis.Locker)),
)

var domainSet = wire.NewSet(
	user.NewService,
	book.NewCatalog,
)

// applicationSet 用例，带标量参数的构造函数经provide*从配置取值
var applicationSet = wire.NewSet(
	appuser.NewRegisterUseCase,
	appuser.NewLoginUseCase,
	provideLogoutUseCase,
	appbook.NewListBooksUseCase,
	appbook.NewGetBookUseCase,
	appcart.NewGetCartUseCase,
	appcart.NewReplaceCartUseCase,
	provideMergeGuestCartUseCase,
	wire.Bind(new(appuser.GuestCartMerger), new(*appcart.MergeGuestCartUseCase)),
	provideGuestCartUseCase,
	apporder.NewCreateOrderUseCase,
	apporder.NewListOrdersUseCase,
	apporder.NewGetOrderUseCase,
	apporder.NewTransitioner,
	provideCheckoutUseCase,
	provideWebhookUseCase,
	apppayment.NewVerifyUseCase,
	provideIssueDownloadUseCase,
	apppayout.NewConfigUseCase,
	provideProcessPayoutUseCase,
)

var handlerSet = wire.NewSet(
	provideJWTManager,
	middleware.NewAuthMiddleware,
	handler.NewUserHandler,
	handler.NewBookHandler,
	handler.NewCartHandler,
	handler.NewOrderHandler,
	handler.NewPaymentHandler,
	handler.NewDownloadHandler,
	handler.NewPayoutHandler,
	wire.Struct(new(router.Handlers), "*"),
	provideEngine,
)

func provideLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	})
}

func provideDB(cfg *config.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	db, err := mysql.NewDB(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

func provideRedis(cfg *config.Config, log zerolog.Logger) (*goredis.Client, func(), error) {
	client, err := redis.NewClient(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { client.Close() }, nil
}

func provideURLSigner(cfg *config.Config, log zerolog.Logger) (*storage.S3Presigner, error) {
	return storage.NewS3Presigner(context.Background(), cfg.Storage, log)
}

func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)
}

func provideLogoutUseCase(store appuser.SessionStore, cfg *config.Config) *appuser.LogoutUseCase {
	return appuser.NewLogoutUseCase(store, cfg.JWT.AccessTokenExpire)
}

func provideMergeGuestCartUseCase(
	cartRepo cart.Repository,
	guestStore cart.GuestStore,
	locker application.Locker,
	txManager application.TxManager,
	cfg *config.Config,
	log zerolog.Logger,
) *appcart.MergeGuestCartUseCase {
	return appcart.NewMergeGuestCartUseCase(cartRepo, guestStore, locker, txManager, cfg.Cart.MergeLockTTL, log)
}

func provideGuestCartUseCase(store cart.GuestStore, catalog book.Catalog, cfg *config.Config) *appcart.GuestCartUseCase {
	return appcart.NewGuestCartUseCase(store, catalog, cfg.Cart.GuestTTL)
}

func provideCheckoutUseCase(
	createOrder *apporder.CreateOrderUseCase,
	transitioner *apporder.Transitioner,
	gateway payment.Gateway,
	cfg *config.Config,
	log zerolog.Logger,
) *apppayment.CheckoutUseCase {
	return apppayment.NewCheckoutUseCase(createOrder, transitioner, gateway,
		cfg.Payment.CallbackURL, cfg.Payment.CheckoutTimeout, log)
}

func provideWebhookUseCase(
	orderRepo order.Repository,
	events payment.EventRepository,
	transitioner *apporder.Transitioner,
	txManager application.TxManager,
	cfg *config.Config,
	log zerolog.Logger,
) (*apppayment.WebhookUseCase, error) {
	allowList, err := cfg.Payment.AllowedPrefixes()
	if err != nil {
		return nil, err
	}
	return apppayment.NewWebhookUseCase(orderRepo, events, transitioner, txManager,
		cfg.Payment.WebhookSecret, allowList, log), nil
}

func provideIssueDownloadUseCase(
	orderRepo order.Repository,
	catalog book.Catalog,
	signer delivery.URLSigner,
	cfg *config.Config,
	log zerolog.Logger,
) *delivery.IssueDownloadUseCase {
	return delivery.NewIssueDownloadUseCase(orderRepo, catalog, signer, cfg.Storage.URLExpiry, log)
}

func provideProcessPayoutUseCase(
	configRepo payout.ConfigRepository,
	recordRepo payout.RecordRepository,
	wallet payout.Wallet,
	locker application.Locker,
	txManager application.TxManager,
	publisher application.EventPublisher,
	cfg *config.Config,
	log zerolog.Logger,
) *apppayout.ProcessPayoutUseCase {
	return apppayout.NewProcessPayoutUseCase(configRepo, recordRepo, wallet, feeSchedule(cfg.Payout),
		locker, txManager, publisher, cfg.Payout.LockTTL, cfg.Payout.MaxAttempts, log)
}

func provideEngine(cfg *config.Config, log zerolog.Logger, h router.Handlers, auth *middleware.AuthMiddleware) (*gin.Engine, error) {
	opts := router.Options{
		Mode:           cfg.Server.Mode,
		TrustedProxies: cfg.Server.TrustedProxies,
		EnableSwagger:  cfg.Server.Mode != gin.ReleaseMode,
		Logger:         log,
	}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
	}
	return router.New(opts, h, auth)
}

// InitializeApp 构造gin引擎，cleanup依次关闭消息、Redis与数据库连接
func InitializeApp() (*gin.Engine, func(), error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		domainSet,
		applicationSet,
		handlerSet,
	)
	return nil, nil, nil
}
