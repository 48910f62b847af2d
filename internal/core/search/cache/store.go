package cache

import (
	"context"
	"errors"
)

// ErrMiss 儲存層找不到鍵
var ErrMiss = errors.New("cache miss")

// Store 快取儲存層，不負責過期判斷
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Len() int
	Close() error
}

// evictionCounter 會主動淘汰條目的儲存層
type evictionCounter interface {
	Evictions() int64
}
