package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"meal-pipeline/internal/core/search/cache"
	"meal-pipeline/internal/core/session"
	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 依賴檢查的逾時
const checkTimeout = 3 * time.Second

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Sessions  int                    `json:"sessions"`
	Caches    []cache.Stats          `json:"caches,omitempty"`
}

// Pinger 可檢查連線的依賴（本地餐點資料庫）
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceHealth 外部服務健康檢查（商品搜尋）
type ServiceHealth interface {
	Health(ctx context.Context) bool
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	// 獲取配置
	v, exists := c.Get("config")
	if !exists {
		common.LogError("Configuration not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Configuration not found",
		})
		return
	}
	cfg, ok := v.(*config.Config)
	if !ok {
		common.LogError("Invalid configuration type in context")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Invalid configuration type",
		})
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   cfg.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if sessions, ok := c.Get("sessions"); ok {
		if mgr, ok := sessions.(*session.Manager); ok {
			response.Sessions = mgr.Len()
		}
	}
	if caches, ok := c.Get("caches"); ok {
		if cc, ok := caches.(*cache.Caches); ok {
			response.Caches = cc.Stats()
		}
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：本地資料庫必須可連線，商品搜尋不可用時只標記為 degraded
func ReadinessCheck(store Pinger, products ServiceHealth) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		defer cancel()

		checks := gin.H{}
		status := "ready"

		if store != nil {
			if err := store.Ping(ctx); err != nil {
				common.LogError("Meal store not reachable", zap.Error(err))
				checks["meal_store"] = "down"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not_ready",
					"checks": checks,
				})
				return
			}
			checks["meal_store"] = "up"
		}

		if products != nil {
			if products.Health(ctx) {
				checks["product_search"] = "up"
			} else {
				checks["product_search"] = "down"
				status = "degraded"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status": status,
			"checks": checks,
		})
	}
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
