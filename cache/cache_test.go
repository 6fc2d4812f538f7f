package cache

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// TestCache_BasicOperations 测试基本操作
func TestCache_BasicOperations(t *testing.T) {
	c := New[string, int](Config{Name: "test", MaxSize: 100, TTL: time.Minute})

	c.Set("key1", 100)
	value, found := c.Get("key1")
	assert.True(t, found)
	assert.Equal(t, 100, value)

	_, found = c.Get("nonexistent")
	assert.False(t, found)

	assert.True(t, c.Delete("key1"))
	assert.False(t, c.Delete("key1"))
	_, found = c.Get("key1")
	assert.False(t, found)
}

// TestCache_LRUEviction 测试 LRU 驱逐
func TestCache_LRUEviction(t *testing.T) {
	c := New[int, string](Config{Name: "test", MaxSize: 3})

	c.Set(1, "one")
	c.Set(2, "two")
	c.Set(3, "three")

	// 访问 key=1，使 key=2 成为最久未使用
	_, found := c.Get(1)
	require.True(t, found)

	c.Set(4, "four")
	assert.Equal(t, 3, c.Size())

	_, found = c.Get(2)
	assert.False(t, found)
	for _, k := range []int{1, 3, 4} {
		_, found = c.Get(k)
		assert.True(t, found, "key %d", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

// TestCache_AbsoluteTTL 测试绝对过期：访问不会续期
func TestCache_AbsoluteTTL(t *testing.T) {
	clock := newClock()
	c := New[string, int](Config{Name: "test", TTL: time.Minute, Now: clock.Now})

	c.Set("k", 1)
	clock.Advance(40 * time.Second)
	_, found := c.Get("k")
	require.True(t, found)

	clock.Advance(20 * time.Second)
	_, found = c.Get("k")
	assert.False(t, found)
	assert.Equal(t, int64(1), c.Stats().Expires)
}

// TestCache_SetWithTTL 测试单条目 TTL
func TestCache_SetWithTTL(t *testing.T) {
	clock := newClock()
	c := New[string, int](Config{Name: "test", TTL: time.Hour, Now: clock.Now})

	c.SetWithTTL("short", 1, time.Second)
	c.SetWithTTL("forever", 2, 0)
	c.Set("default", 3)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, c.CleanExpired())

	_, found := c.Get("forever")
	assert.True(t, found)
	_, found = c.Get("default")
	assert.True(t, found)
}

// TestCache_DeleteFunc 测试按前缀批量失效
func TestCache_DeleteFunc(t *testing.T) {
	c := New[string, string](Config{Name: "results"})
	c.Set("users:get:1", "a")
	c.Set("users:count:2", "b")
	c.Set("posts:get:1", "c")

	removed := c.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, "users:") })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Size())

	_, found := c.Get("posts:get:1")
	assert.True(t, found)
}

// TestCache_OnEvict 测试驱逐回调
func TestCache_OnEvict(t *testing.T) {
	evicted := map[any]any{}
	c := New[int, string](Config{
		Name:    "test",
		MaxSize: 2,
		OnEvict: func(key, value any) { evicted[key] = value },
	})

	c.Set(1, "one")
	c.Set(2, "two")
	c.Set(3, "three")
	assert.Equal(t, "one", evicted[1])

	c.Clear()
	assert.Len(t, evicted, 3)
	assert.Equal(t, 0, c.Size())
}

// TestCache_HitRate 测试命中率与字符串表示
func TestCache_HitRate(t *testing.T) {
	c := New[string, int](Config{Name: "rate", MaxSize: 10})
	assert.Equal(t, float64(0), c.HitRate())

	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	assert.InDelta(t, 0.5, c.HitRate(), 0.0001)
	assert.Contains(t, c.String(), "Cache[rate]")
}

// TestCache_ConcurrentAccess 测试并发访问
func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](Config{Name: "test", MaxSize: 1000})

	const goroutines = 10
	const iterations = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				key := id*iterations + i
				c.Set(key, key*2)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, goroutines*iterations, c.Size())
	value, found := c.Get(123)
	assert.True(t, found)
	assert.Equal(t, 246, value)
}

func BenchmarkCache_Get(b *testing.B) {
	c := New[int, int](Config{Name: "bench", MaxSize: 1000})
	for i := 0; i < 1000; i++ {
		c.Set(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(i % 1000)
	}
}
