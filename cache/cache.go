// Package cache 提供进程内泛型结果缓存。
//
// 条目按写入时间绝对过期，容量满时按 LRU 驱逐；DeleteFunc 支持按键前缀等
// 条件批量失效，供仓储在写操作后清理整张表的查询结果。
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Cache 通用泛型缓存，并发安全
//
// 使用示例：
//
//	results := cache.New[string, []byte](cache.Config{
//	    Name:    "repo_results",
//	    MaxSize: 1000,
//	    TTL:     time.Minute,
//	})
//	results.Set("users:get:ab12", payload)
//	results.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, "users:") })
type Cache[K comparable, V any] struct {
	name   string
	config Config

	items   map[K]*cacheEntry[K, V]
	lruList *list.List // 最近使用的在前

	mu    sync.Mutex
	stats Stats
}

type cacheEntry[K comparable, V any] struct {
	key        K
	value      V
	expiresAt  time.Time // 零值表示永不过期
	lruElement *list.Element
}

// Config 缓存配置
type Config struct {
	// Name 缓存名称（用于日志和统计）
	Name string

	// MaxSize 最大条目数，0 表示无限制
	MaxSize int

	// TTL 默认存活时间，0 表示永不过期
	TTL time.Duration

	// OnEvict 条目被移除时的回调（可选）
	OnEvict func(key, value any)

	// Now 时钟，测试时可替换
	Now func() time.Time
}

// Stats 缓存统计信息
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64 // LRU 驱逐次数
	Expires   int64 // TTL 过期次数
	Size      int
}

// New 创建新的缓存实例
func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Cache[K, V]{
		name:    config.Name,
		config:  config,
		items:   make(map[K]*cacheEntry[K, V]),
		lruList: list.New(),
	}
}

// Get 获取缓存值，过期条目视为未命中并被删除
func (c *Cache[K, V]) Get(key K) (value V, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.stats.Misses++
		return value, false
	}
	if c.expired(entry) {
		c.removeLocked(entry)
		c.stats.Misses++
		c.stats.Expires++
		return value, false
	}

	c.lruList.MoveToFront(entry.lruElement)
	c.stats.Hits++
	return entry.value, true
}

// Set 以默认 TTL 写入
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.config.TTL)
}

// SetWithTTL 以指定 TTL 写入，ttl<=0 表示永不过期
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.config.Now().Add(ttl)
	}

	if entry, exists := c.items[key]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		c.lruList.MoveToFront(entry.lruElement)
		return
	}

	if c.config.MaxSize > 0 && len(c.items) >= c.config.MaxSize {
		if oldest := c.lruList.Back(); oldest != nil {
			c.removeLocked(oldest.Value.(*cacheEntry[K, V]))
			c.stats.Evictions++
		}
	}

	entry := &cacheEntry[K, V]{key: key, value: value, expiresAt: expiresAt}
	entry.lruElement = c.lruList.PushFront(entry)
	c.items[key] = entry
}

// Delete 删除条目，返回是否存在
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		return false
	}
	c.removeLocked(entry)
	return true
}

// DeleteFunc 删除所有满足条件的条目，返回删除数量
func (c *Cache[K, V]) DeleteFunc(match func(key K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.items {
		if match(key) {
			c.removeLocked(entry)
			removed++
		}
	}
	return removed
}

// Clear 清空所有缓存
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.OnEvict != nil {
		for _, entry := range c.items {
			c.config.OnEvict(entry.key, entry.value)
		}
	}
	c.items = make(map[K]*cacheEntry[K, V])
	c.lruList = list.New()
}

// CleanExpired 清理过期条目，返回清理数量
func (c *Cache[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleaned := 0
	for _, entry := range c.items {
		if c.expired(entry) {
			c.removeLocked(entry)
			cleaned++
		}
	}
	c.stats.Expires += int64(cleaned)
	return cleaned
}

// Stats 获取统计信息副本
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.items)
	return stats
}

// Size 当前条目数
func (c *Cache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HitRate 命中率
func (c *Cache[K, V]) HitRate() float64 {
	s := c.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (c *Cache[K, V]) expired(entry *cacheEntry[K, V]) bool {
	return !entry.expiresAt.IsZero() && !c.config.Now().Before(entry.expiresAt)
}

func (c *Cache[K, V]) removeLocked(entry *cacheEntry[K, V]) {
	if c.config.OnEvict != nil {
		c.config.OnEvict(entry.key, entry.value)
	}
	if entry.lruElement != nil {
		c.lruList.Remove(entry.lruElement)
	}
	delete(c.items, entry.key)
}

// String 返回缓存信息的字符串表示
func (c *Cache[K, V]) String() string {
	stats := c.Stats()
	return fmt.Sprintf("Cache[%s]: size=%d/%d, hits=%d, misses=%d, hit_rate=%.2f%%, evictions=%d, expires=%d",
		c.name,
		stats.Size,
		c.config.MaxSize,
		stats.Hits,
		stats.Misses,
		c.HitRate()*100,
		stats.Evictions,
		stats.Expires,
	)
}
