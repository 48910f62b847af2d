package cache

import (
	"context"

	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"go.uber.org/zap"
)

// Caches 自動完成使用的快取組合
type Caches struct {
	// Search 完整搜尋結果與熱門搜尋，可使用 Redis
	Search *ResultCache
	// Suggestions 自動完成建議，只存在行程內
	Suggestions *ResultCache
}

// NewCaches 依設定建立快取；Redis 無法連線時退回行程內快取
func NewCaches(ctx context.Context, cfg *config.CacheConfig) *Caches {
	var searchStore Store = NewMemoryStore(cfg.MaxSize)
	if cfg.Backend == "redis" {
		redisStore, err := NewRedisStore(ctx, cfg)
		if err != nil {
			common.LogWarn("Redis 快取無法使用，改用記憶體快取",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err),
			)
		} else {
			searchStore = redisStore
		}
	}

	caches := &Caches{
		Search:      New("search", searchStore, cfg.SearchTTL),
		Suggestions: New("suggest", NewMemoryStore(cfg.MaxSize), cfg.SuggestionTTL),
	}

	common.LogInfo("快取已初始化",
		zap.String("backend", cfg.Backend),
		zap.Int("最大容量", cfg.MaxSize),
		zap.Duration("搜尋存活時間", cfg.SearchTTL),
		zap.Duration("建議存活時間", cfg.SuggestionTTL),
	)
	return caches
}

// Stats 取得所有快取統計
func (c *Caches) Stats() []Stats {
	if c == nil {
		return nil
	}
	return []Stats{c.Search.Stats(), c.Suggestions.Stats()}
}

// Close 關閉所有快取
func (c *Caches) Close() error {
	if c == nil {
		return nil
	}
	err := c.Search.Close()
	if err2 := c.Suggestions.Close(); err == nil {
		err = err2
	}
	return err
}
