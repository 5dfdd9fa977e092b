package router

import (
	"fmt"
	"strings"

	"github.com/pixelmart/internal/cache"
	"github.com/pixelmart/internal/config"
	adminhandlers "github.com/pixelmart/internal/http/handlers/admin"
	publichandlers "github.com/pixelmart/internal/http/handlers/public"
	"github.com/pixelmart/internal/logger"
	"github.com/pixelmart/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pm"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.rate_limited",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.rate_limited",
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxAttempts,
		MessageKey:    "error.rate_limited",
	}
	downloadRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:download", redisPrefix),
		WindowSeconds: cfg.Security.DownloadRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.DownloadRateLimit.MaxAttempts,
		MessageKey:    "error.rate_limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/products", publicHandler.GetProducts)
			public.GET("/products/:slug", publicHandler.GetProductBySlug)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIP), publicHandler.UserLogin)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.GetCurrentUser)
			user.POST("/orders", RateLimitMiddleware(redisClient, checkoutRule, KeyByUserID), publicHandler.CreateOrder)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.GET("/orders/by-order-no/:order_no", publicHandler.GetOrderByOrderNo)
			user.GET("/orders/:id/history", publicHandler.GetOrderHistory)
			user.POST("/orders/:id/cancel", publicHandler.CancelOrder)
			user.POST("/orders/:id/payments", publicHandler.CreatePaymentIntent)
			user.POST("/orders/:id/payments/capture", publicHandler.CapturePayment)
			user.POST("/orders/:id/free-complete", publicHandler.CompleteFreeOrder)
			user.POST("/discounts/validate", publicHandler.ValidateDiscount)
			user.GET("/downloads/:file_id", RateLimitMiddleware(redisClient, downloadRule, KeyByUserID), publicHandler.DownloadFile)
		}

		// 支付回调（网关服务端调用，无需鉴权）
		apiV1.POST("/payments/callback", publicHandler.PaymentCallback)
		apiV1.GET("/payments/callback", publicHandler.PaymentCallback)

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
			{
				// 订单管理
				authorized.GET("/orders", adminHandler.AdminListOrders)
				authorized.GET("/orders/:id", adminHandler.AdminGetOrder)
				authorized.PATCH("/orders/:id", adminHandler.AdminUpdateOrderStatus)
				authorized.POST("/orders/:id/cancel", adminHandler.AdminCancelOrder)
				authorized.POST("/orders/:id/refund", adminHandler.AdminRefundOrder)
				authorized.POST("/orders/:id/complete", adminHandler.AdminCompleteOrder)
				authorized.POST("/orders/:id/fulfill", adminHandler.AdminFulfillOrder)

				// 折扣码管理
				authorized.POST("/discount-codes", adminHandler.CreateDiscountCode)
				authorized.GET("/discount-codes", adminHandler.ListDiscountCodes)
				authorized.GET("/discount-codes/:id", adminHandler.GetDiscountCode)
				authorized.PUT("/discount-codes/:id", adminHandler.UpdateDiscountCode)
				authorized.PATCH("/discount-codes/:id/active", adminHandler.SetDiscountCodeActive)
				authorized.DELETE("/discount-codes/:id", adminHandler.DeleteDiscountCode)
				authorized.GET("/discount-usages", adminHandler.ListDiscountUsages)

				// 下载授权管理
				authorized.GET("/grants", adminHandler.ListDownloadGrants)
				authorized.POST("/grants/revoke", adminHandler.RevokeDownloadGrant)
				authorized.POST("/grants/restore", adminHandler.RestoreDownloadGrant)
				authorized.GET("/products/:id/files", adminHandler.ListProductFiles)
				authorized.GET("/files/:file_id/download", adminHandler.AdminDownloadFile)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
