package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-pipeline/internal/api"
	"meal-pipeline/internal/api/middleware"
	"meal-pipeline/internal/core/search/autocomplete"
	"meal-pipeline/internal/core/search/cache"
	"meal-pipeline/internal/core/session"
	"meal-pipeline/internal/infrastructure/clients"
	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/infrastructure/store"
	"meal-pipeline/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("product_search_url", cfg.ProductSearch.BaseURL),
		zap.String("meal_api_key", config.MaskAPIKey(cfg.MealAPI.APIKey)),
		zap.Bool("meal_api", cfg.MealAPI.Enabled()),
		zap.Bool("shopping_api", cfg.ShoppingAPI.Enabled()),
		zap.Bool("calendar_api", cfg.CalendarAPI.Enabled()),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	// 初始化快取
	caches := cache.NewCaches(context.Background(), &cfg.Cache)
	defer caches.Close()

	productSearch := clients.NewProductSearchClient(cfg.ProductSearch)

	deps := session.Dependencies{
		Search:       productSearch,
		Caches:       caches,
		Autocomplete: autocomplete.SettingsFromConfig(&cfg.Autocomplete),
	}
	routerDeps := api.Dependencies{
		Caches:        caches,
		Products:      productSearch,
		Brands:        productSearch,
		ProductHealth: productSearch,
	}

	// 餐點儲存：有遠端服務時使用遠端，否則使用本地資料庫
	if cfg.MealAPI.Enabled() {
		deps.Meals = clients.NewMealClient(cfg.MealAPI)
	} else {
		mealStore, err := store.Open(cfg.Store)
		if err != nil {
			common.LogFatal("Failed to open meal store", zap.Error(err))
		}
		defer mealStore.Close()
		deps.Meals = mealStore
		routerDeps.Store = mealStore
	}
	if cfg.ShoppingAPI.Enabled() {
		deps.Shopping = clients.NewShoppingClient(cfg.ShoppingAPI)
	}
	if cfg.CalendarAPI.Enabled() {
		deps.Calendar = clients.NewCalendarClient(cfg.CalendarAPI)
	}

	sessions := session.NewManager(deps, cfg.Session.IdleTTL)
	sessions.StartCleanup(cfg.Session.CleanupInterval)
	defer sessions.Stop()
	routerDeps.Sessions = sessions

	dedup := middleware.NewDeduplicator(cfg.DedupWindow)
	dedup.StartCleanup(time.Minute)
	defer dedup.Stop()
	routerDeps.Dedup = dedup

	// 設置路由
	router := api.SetupRouter(cfg, routerDeps)

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
