package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meal-pipeline/internal/infrastructure/config"

	"github.com/go-redis/redis/v8"
)

// RedisStore 以 Redis 作為跨行程的搜尋結果快取
type RedisStore struct {
	client     *redis.Client
	prefix     string
	expiration time.Duration
}

// BackstopExpiration Redis 鍵的存活時間，為快取存活時間的兩倍。
// 是否過期仍由 ResultCache 讀取時判斷，Redis TTL 只用來回收不再被讀取的鍵。
func BackstopExpiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return 2 * ttl
}

// NewRedisStore 創建 Redis 快取，連線失敗時回傳錯誤
func NewRedisStore(ctx context.Context, cfg *config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.KeyPrefix, BackstopExpiration(cfg.SearchTTL)), nil
}

// NewRedisStoreFromClient 使用既有的 client；expiration 為 0 時鍵不會過期
func NewRedisStoreFromClient(client *redis.Client, prefix string, expiration time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, expiration: expiration}
}

// Get 獲取緩存
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	return data, nil
}

// Set 設置緩存
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Len 回傳 DB 的鍵數量，查詢失敗時回傳 -1
func (s *RedisStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return -1
	}
	return int(n)
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}
