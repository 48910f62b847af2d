package api

import (
	"context"
	"net/http"
	"time"

	"meal-pipeline/internal/api/handlers"
	"meal-pipeline/internal/api/handlers/health"
	mealHandler "meal-pipeline/internal/api/handlers/meal"
	searchHandler "meal-pipeline/internal/api/handlers/search"
	"meal-pipeline/internal/api/middleware"
	"meal-pipeline/internal/core/search/cache"
	"meal-pipeline/internal/core/session"
	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 超時設置
	timeoutDuration = 60 * time.Second
	// 請求體大小限制 (1MB)
	defaultMaxBodySize = 1 << 20
)

// Dependencies 路由需要的服務
type Dependencies struct {
	Sessions *session.Manager
	Caches   *cache.Caches

	// Products 條碼查詢，可為 nil
	Products mealHandler.ProductLookup
	// Brands 品牌清單，可為 nil
	Brands searchHandler.BrandLister
	// ProductHealth 商品搜尋健康檢查，可為 nil
	ProductHealth health.ServiceHealth
	// Store 本地餐點資料庫，使用遠端餐點服務時為 nil
	Store health.Pinger
	// Dedup 為 nil 時建立不含背景清理的去重器
	Dedup *middleware.Deduplicator
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	router.Use(middleware.BodySizeLimit(maxBodySize))

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		router.Use(middleware.RateLimit(limiter, cfg.RateLimit.Window))
	}

	// 全局中間件：設置超時和服務
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set("config", cfg)
		c.Set("sessions", deps.Sessions)
		c.Set("caches", deps.Caches)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeoutDuration),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    "REQUEST_TIMEOUT",
				Message: "Request timeout",
				Details: timeoutDuration.String(),
			})
		}
	})

	dedup := deps.Dedup
	if dedup == nil {
		dedup = middleware.NewDeduplicator(cfg.DedupWindow)
	}

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck(deps.Store, deps.ProductHealth))
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		mealHandlerInstance := mealHandler.NewHandler(deps.Sessions, deps.Products)

		api.POST("/sessions", mealHandlerInstance.HandleCreateSession)
		api.DELETE("/sessions/:id", mealHandlerInstance.HandleCloseSession)
		api.GET("/sessions/:id/meal/status", mealHandlerInstance.HandleMealStatus)

		sessionGroup := api.Group("/sessions/:id", handlers.LoadSession(deps.Sessions))
		{
			// 食材清單
			sessionGroup.GET("/ingredients", mealHandlerInstance.HandleListIngredients)
			sessionGroup.POST("/ingredients", mealHandlerInstance.HandleAddIngredient)
			sessionGroup.PUT("/ingredients", mealHandlerInstance.HandleReplaceIngredients)
			sessionGroup.POST("/ingredients/product", mealHandlerInstance.HandleAddProduct)
			sessionGroup.PATCH("/ingredients/:ingredientId", mealHandlerInstance.HandleUpdateIngredient)
			sessionGroup.DELETE("/ingredients/:ingredientId", mealHandlerInstance.HandleRemoveIngredient)

			sessionGroup.DELETE("/meal/error", mealHandlerInstance.HandleClearMealError)

			// 儲存與購物清單，重複送出會被擋下
			saveGroup := sessionGroup.Group("", dedup.Middleware())
			{
				saveGroup.POST("/meal", mealHandlerInstance.HandleSaveMeal)
				saveGroup.POST("/meal/shop", mealHandlerInstance.HandleSaveAndShop)
				saveGroup.POST("/shopping-list", mealHandlerInstance.HandleCreateShoppingList)
				saveGroup.POST("/calendar", mealHandlerInstance.HandleSchedule)
			}

			// 搜尋框
			sessionGroup.GET("/search", searchHandler.HandleSnapshot)
			sessionGroup.DELETE("/search", searchHandler.HandleClear)
			sessionGroup.GET("/search/trending", searchHandler.HandleTrending)
			sessionGroup.GET("/search/brands", searchHandler.HandleBrands(deps.Brands))
			sessionGroup.PUT("/search/query", searchHandler.HandleSetQuery)
			sessionGroup.POST("/search/select", searchHandler.HandleSelect)
			sessionGroup.POST("/search/submit", searchHandler.HandleSubmit)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("dedup_window", cfg.DedupWindow),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router
}
