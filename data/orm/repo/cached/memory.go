// Package cached 提供仓储查询结果缓存的实现：进程内 LRU 与 Redis。
package cached

import (
	"context"
	"strings"
	"time"

	"repokit/cache"
	"repokit/data/orm/repo"
)

const keySep = "|"

var _ repo.IResultCache = (*MemoryCache)(nil)

// MemoryCache 基于 cache.Cache 的进程内结果缓存，按表前缀失效
type MemoryCache struct {
	store *cache.Cache[string, []byte]
}

// NewMemoryCache 创建进程内缓存；maxSize 为 0 表示不限容量，ttl 为默认存活时间
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: cache.New[string, []byte](cache.Config{
		Name:    "repo_results",
		MaxSize: maxSize,
		TTL:     ttl,
	})}
}

// NewMemoryCacheFrom 复用已有的 cache.Cache 实例
func NewMemoryCacheFrom(store *cache.Cache[string, []byte]) *MemoryCache {
	return &MemoryCache{store: store}
}

func (c *MemoryCache) Get(_ context.Context, table, key string) ([]byte, bool, error) {
	v, ok := c.store.Get(table + keySep + key)
	return v, ok, nil
}

// Set ttl 为 0 时使用缓存的默认 TTL
func (c *MemoryCache) Set(_ context.Context, table, key string, value []byte, ttl time.Duration) error {
	if ttl > 0 {
		c.store.SetWithTTL(table+keySep+key, value, ttl)
		return nil
	}
	c.store.Set(table+keySep+key, value)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, table string) error {
	prefix := table + keySep
	c.store.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
	return nil
}

// Stats 返回底层缓存统计
func (c *MemoryCache) Stats() cache.Stats {
	return c.store.Stats()
}
