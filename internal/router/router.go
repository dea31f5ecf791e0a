package router

import (
	"fmt"
	"strings"

	"github.com/qingmall/internal/cache"
	"github.com/qingmall/internal/config"
	adminhandlers "github.com/qingmall/internal/http/handlers/admin"
	publichandlers "github.com/qingmall/internal/http/handlers/public"
	"github.com/qingmall/internal/logger"
	"github.com/qingmall/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "qm"
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "登录尝试过于频繁，请稍后重试",
	}
	callbackRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:callback", redisPrefix),
		WindowSeconds: cfg.Security.CallbackRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CallbackRateLimit.MaxRequests,
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests,
		Message:       "下单过于频繁，请稍后重试",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/products", publicHandler.ListProducts)
			public.GET("/products/:id", publicHandler.GetProduct)
			public.GET("/shipping-methods", publicHandler.ListShippingMethods)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(cache.Client(), loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 支付渠道异步通知（渠道侧调用，不走用户鉴权）
		callbackLimiter := RateLimitMiddleware(cache.Client(), callbackRule, KeyByIPAndParam("method"))
		apiV1.POST("/payments/callback/:method", callbackLimiter, publicHandler.PaymentCallback)
		apiV1.GET("/payments/callback/:method", callbackLimiter, publicHandler.PaymentCallback)

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.Profile)
			user.PUT("/me/profile", publicHandler.UpdateProfile)
			user.PUT("/me/password", publicHandler.ChangePassword)

			user.GET("/cart", publicHandler.GetCart)
			user.POST("/cart/items", publicHandler.AddCartItem)
			user.PUT("/cart/items/:id", publicHandler.UpdateCartItem)
			user.DELETE("/cart/items/:id", publicHandler.RemoveCartItem)
			user.DELETE("/cart", publicHandler.ClearCart)

			user.GET("/addresses", publicHandler.ListAddresses)
			user.POST("/addresses", publicHandler.CreateAddress)
			user.PUT("/addresses/:id", publicHandler.UpdateAddress)
			user.DELETE("/addresses/:id", publicHandler.DeleteAddress)

			user.POST("/checkout", RateLimitMiddleware(cache.Client(), checkoutRule, KeyByIP), publicHandler.Checkout)

			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.GET("/orders/:id/logs", publicHandler.ListOrderLogs)
			user.GET("/orders/:id/payments", publicHandler.ListOrderPayments)
			user.POST("/orders/:id/cancel", publicHandler.CancelOrder)
			user.POST("/orders/:id/confirm-receipt", publicHandler.ConfirmOrderReceipt)

			user.POST("/payments", publicHandler.CreatePayment)
			user.GET("/payments/:id", publicHandler.GetPayment)

			user.GET("/balance", publicHandler.GetBalance)
			user.GET("/balance/transactions", publicHandler.ListBalanceTransactions)

			user.GET("/withdraw/accounts", publicHandler.ListWithdrawAccounts)
			user.POST("/withdraw/accounts", publicHandler.CreateWithdrawAccount)
			user.DELETE("/withdraw/accounts/:id", publicHandler.DeleteWithdrawAccount)
			user.POST("/withdraw/applies", publicHandler.ApplyWithdraw)
			user.GET("/withdraw/applies", publicHandler.ListWithdrawApplies)
			user.GET("/withdraw/applies/:id", publicHandler.GetWithdrawApply)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo), AdminGuardMiddleware())
		{
			admin.GET("/orders", adminHandler.AdminListOrders)
			admin.GET("/orders/:id", adminHandler.AdminGetOrder)
			admin.POST("/orders/:id/ship", adminHandler.AdminShipOrder)
			admin.POST("/orders/:id/close", adminHandler.AdminCloseOrder)

			admin.GET("/payments", adminHandler.AdminListPayments)
			admin.POST("/payments/:id/sync", adminHandler.AdminSyncPayment)

			admin.POST("/refunds", adminHandler.AdminCreateRefund)
			admin.GET("/refunds", adminHandler.AdminListRefunds)
			admin.POST("/refunds/:id/complete", adminHandler.AdminCompleteRefund)
			admin.POST("/refunds/:id/reject", adminHandler.AdminRejectRefund)

			admin.GET("/withdraw/applies", adminHandler.AdminListWithdrawApplies)
			admin.POST("/withdraw/applies/:id/review", adminHandler.AdminReviewWithdraw)

			admin.GET("/products", adminHandler.AdminListProducts)
			admin.POST("/products", adminHandler.AdminCreateProduct)
			admin.PUT("/products/:id", adminHandler.AdminUpdateProduct)
			admin.POST("/products/:id/restock", adminHandler.AdminRestockProduct)

			admin.GET("/shipping-methods", adminHandler.AdminListShippingMethods)
			admin.POST("/shipping-methods", adminHandler.AdminCreateShippingMethod)
			admin.PUT("/shipping-methods/:id", adminHandler.AdminUpdateShippingMethod)
			admin.DELETE("/shipping-methods/:id", adminHandler.AdminDeleteShippingMethod)

			admin.GET("/users", adminHandler.AdminListUsers)
			admin.GET("/users/:id/balance", adminHandler.AdminGetBalanceAccount)
			admin.GET("/balance/transactions", adminHandler.AdminListBalanceTransactions)
			admin.POST("/balance/adjust", adminHandler.AdminAdjustBalance)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
