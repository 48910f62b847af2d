// Package cache 提供搜尋結果快取。過期只在讀取時判斷，不會主動清除；
// 儲存層的任何錯誤都視為未命中，快取永遠不影響正確性。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"meal-pipeline/internal/pkg/common"

	"go.uber.org/zap"
)

// CachedResult 快取的搜尋結果
type CachedResult struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode 將 payload 解析到 v
func (r *CachedResult) Decode(v interface{}) error {
	return common.ParseJSONBytes(r.Payload, v)
}

// Stats 快取統計
type Stats struct {
	Name      string  `json:"name"`
	Size      int     `json:"size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Expired   int64   `json:"expired"`
	Evictions int64   `json:"evictions"`
	Errors    int64   `json:"errors"`
	TTL       string  `json:"ttl"`
	HitRate   float64 `json:"hit_ratio"`
}

// ResultCache 以正規化查詢字串為鍵、具存活時間的快取
type ResultCache struct {
	name  string
	store Store
	ttl   time.Duration
	now   func() time.Time

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64
	errors  atomic.Int64
}

// Option ResultCache 選項
type Option func(*ResultCache)

// WithClock 替換時間來源
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		c.now = now
	}
}

// New 創建快取；ttl <= 0 代表停用（Get 永遠未命中、Set 不寫入）
func New(name string, store Store, ttl time.Duration, opts ...Option) *ResultCache {
	c := &ResultCache{
		name:  name,
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeKey 轉小寫並合併空白
func NormalizeKey(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(key)), " ")
}

// Get 讀取快取；從未寫入、已過期或儲存層錯誤皆回傳 false
func (c *ResultCache) Get(ctx context.Context, key string) (*CachedResult, bool) {
	if c == nil || c.store == nil || c.ttl <= 0 {
		return nil, false
	}
	key = NormalizeKey(key)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.errors.Add(1)
			common.LogWarn("快取讀取失敗，視為未命中",
				zap.String("cache", c.name),
				zap.Error(err),
			)
		}
		c.misses.Add(1)
		common.LogCacheMiss(c.name, key)
		return nil, false
	}

	var entry CachedResult
	if err := json.Unmarshal(data, &entry); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		common.LogWarn("快取內容無法解析，視為未命中",
			zap.String("cache", c.name),
			zap.Error(err),
		)
		return nil, false
	}

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		c.expired.Add(1)
		c.misses.Add(1)
		common.LogDebug("快取已過期",
			zap.String("cache", c.name),
			zap.String("鍵", key),
		)
		return nil, false
	}

	c.hits.Add(1)
	common.LogCacheHit(c.name, key)
	return &entry, true
}

// Load 讀取並解析快取到 v
func (c *ResultCache) Load(ctx context.Context, key string, v interface{}) bool {
	entry, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := entry.Decode(v); err != nil {
		c.errors.Add(1)
		return false
	}
	return true
}

// Set 寫入快取，同鍵以最後寫入為準；失敗只記錄日誌
func (c *ResultCache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil || c.store == nil || c.ttl <= 0 {
		return
	}
	key = NormalizeKey(key)

	payload, err := json.Marshal(value)
	if err != nil {
		c.errors.Add(1)
		common.LogWarn("快取內容序列化失敗", zap.String("cache", c.name), zap.Error(err))
		return
	}

	data, err := json.Marshal(CachedResult{
		Key:       key,
		Payload:   payload,
		CreatedAt: c.now(),
	})
	if err != nil {
		c.errors.Add(1)
		return
	}

	if err := c.store.Set(ctx, key, data); err != nil {
		c.errors.Add(1)
		common.LogWarn("快取寫入失敗", zap.String("cache", c.name), zap.Error(err))
	}
}

// Stats 取得統計資料
func (c *ResultCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	size := 0
	var evictions int64
	if c.store != nil {
		size = c.store.Len()
		if ev, ok := c.store.(evictionCounter); ok {
			evictions = ev.Evictions()
		}
	}
	return Stats{
		Name:      c.name,
		Size:      size,
		Hits:      hits,
		Misses:    misses,
		Expired:   c.expired.Load(),
		Evictions: evictions,
		Errors:    c.errors.Load(),
		TTL:       c.ttl.String(),
		HitRate:   ratio,
	}
}

// Close 關閉儲存層
func (c *ResultCache) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}
