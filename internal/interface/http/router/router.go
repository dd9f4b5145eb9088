// Package router 组装gin引擎：全局中间件、路由分组、权限
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/xiebiao/ebookstore/internal/interface/http/handler"
	"github.com/xiebiao/ebookstore/internal/interface/http/middleware"
	"github.com/xiebiao/ebookstore/pkg/response"
)

// Options 路由依赖
type Options struct {
	Mode           string
	TrustedProxies []string
	MetricsPath    string // 为空时不暴露指标
	EnableSwagger  bool
	Logger         zerolog.Logger
}

// Handlers 所有HTTP处理器
type Handlers struct {
	User     *handler.UserHandler
	Book     *handler.BookHandler
	Cart     *handler.CartHandler
	Order    *handler.OrderHandler
	Payment  *handler.PaymentHandler
	Download *handler.DownloadHandler
	Payout   *handler.PayoutHandler
}

// New 创建gin引擎并注册路由
func New(opts Options, h Handlers, auth *middleware.AuthMiddleware) (*gin.Engine, error) {
	switch opts.Mode {
	case gin.ReleaseMode, gin.TestMode, gin.DebugMode:
		gin.SetMode(opts.Mode)
	}

	r := gin.New()
	// ClientIP只信任配置的代理，回调白名单依赖这一点
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(
		gin.Recovery(),
		middleware.Tracing(),
		middleware.RequestLogger(opts.Logger),
		middleware.Metrics(),
	)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong", "status": "healthy"})
	})
	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
	if opts.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")

	users := v1.Group("/users")
	{
		users.POST("/register", h.User.Register)
		users.POST("/login", h.User.Login)
		users.POST("/logout", auth.RequireAuth(), h.User.Logout)
	}

	books := v1.Group("/books")
	{
		books.GET("", h.Book.ListBooks)
		books.GET("/:id", h.Book.GetBook)
	}

	guest := v1.Group("/guest-cart", middleware.GuestID())
	{
		guest.GET("", h.Cart.GetGuestCart)
		guest.POST("", h.Cart.ReplaceGuestCart)
	}

	// 服务商回调不走JWT，由白名单和签名保护
	v1.POST("/payments/webhook", h.Payment.Webhook)

	authorized := v1.Group("", auth.RequireAuth())
	{
		authorized.GET("/cart", h.Cart.GetCart)
		authorized.POST("/cart", h.Cart.ReplaceCart)
		authorized.POST("/cart/merge", h.Cart.MergeCart)

		authorized.POST("/orders", h.Order.CreateOrder)
		authorized.GET("/orders", h.Order.ListOrders)
		authorized.GET("/orders/by-ref/:customId", h.Order.GetOrderByRef)

		authorized.POST("/payments/:reference/verify", h.Payment.VerifyPayment)
		authorized.POST("/download", h.Download.IssueDownload)
	}

	admin := v1.Group("", auth.RequireAuth(), middleware.RequireAdmin())
	{
		admin.PATCH("/orders/:id/status", h.Order.UpdateOrderStatus)

		admin.POST("/payouts", h.Payout.CreateConfig)
		admin.GET("/payouts", h.Payout.ListConfigs)
		admin.PUT("/payouts/:id", h.Payout.UpdateConfig)
		admin.POST("/payouts/:id/payout-now", h.Payout.PayoutNow)
	}

	return r, nil
}
