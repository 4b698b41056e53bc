package utils

import (
	"sync"
	"sync/atomic"
	"time"
)

// cacheItem 内部结构，包含值和过期时间
type cacheItem[V any] struct {
	value      V
	expiration int64
}

// Cache 基于 sync.Map 的并发安全 TTL 缓存
type Cache[K comparable, V any] struct {
	items   sync.Map
	ttl     time.Duration
	size    atomic.Int64
	nowFunc func() time.Time
}

// NewCache 创建缓存，ttl <= 0 表示永不过期
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{ttl: ttl, nowFunc: time.Now}
}

// Set 设置缓存
func (c *Cache[K, V]) Set(key K, value V) {
	var exp int64
	if c.ttl > 0 {
		exp = c.nowFunc().Add(c.ttl).UnixNano()
	}
	if _, loaded := c.items.Swap(key, cacheItem[V]{value: value, expiration: exp}); !loaded {
		c.size.Add(1)
	}
}

// Get 获取缓存并验证是否过期
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	val, ok := c.items.Load(key)
	if !ok {
		return zero, false
	}

	item := val.(cacheItem[V])
	if c.expired(item) {
		c.Delete(key) // 懒删除
		return zero, false
	}
	return item.value, true
}

// GetOrCompute 命中直接返回，否则调用 fn 计算并写入
func (c *Cache[K, V]) GetOrCompute(key K, fn func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := fn()
	c.Set(key, v)
	return v
}

// Delete 删除缓存
func (c *Cache[K, V]) Delete(key K) {
	if _, loaded := c.items.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}
}

// Purge 清理所有过期条目，返回清理数量
func (c *Cache[K, V]) Purge() int {
	removed := 0
	c.items.Range(func(key, val any) bool {
		if c.expired(val.(cacheItem[V])) {
			if _, loaded := c.items.LoadAndDelete(key); loaded {
				c.size.Add(-1)
				removed++
			}
		}
		return true
	})
	return removed
}

// Len 当前条目数（含尚未清理的过期条目）
func (c *Cache[K, V]) Len() int {
	return int(c.size.Load())
}

func (c *Cache[K, V]) expired(item cacheItem[V]) bool {
	return item.expiration > 0 && c.nowFunc().UnixNano() > item.expiration
}
