package core

import (
	"crypto/sha1"
	"fmt"
	"sync"
	"time"
)

// ResultCache TTL结果缓存，供可疑度打分与探测点规划共享。
// 并发读写安全；同键并发写采用last-write-wins，不影响正确性。
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

type cacheEntry struct {
	value     interface{}
	createdAt time.Time
}

// NewResultCache 创建缓存并启动周期清理。maxEntries<=0 表示不限制条目数。
func NewResultCache(ttl time.Duration, maxEntries int) *ResultCache {
	c := &ResultCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// CacheKey 生成缓存键，kind为 "suspicion" 或 "points"
func CacheKey(videoID string, segIndex int, text, kind string) string {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(text)))[:10]
	return fmt.Sprintf("%s:%d:%s:%s", videoID, segIndex, hash, kind)
}

// Get 读取未过期的条目
func (c *ResultCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set 写入条目，必要时淘汰最旧的条目
func (c *ResultCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, createdAt: time.Now()}
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictOldestLocked(len(c.entries) - c.maxEntries)
	}
}

// Len 返回当前条目数
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close 停止后台清理
func (c *ResultCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *ResultCache) sweepLoop() {
	interval := c.ttl
	if interval <= 0 || interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *ResultCache) sweepExpired() {
	if c.ttl <= 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *ResultCache) evictOldestLocked(n int) {
	for i := 0; i < n; i++ {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for key, entry := range c.entries {
			if first || entry.createdAt.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.createdAt
				first = false
			}
		}
		if first {
			return
		}
		delete(c.entries, oldestKey)
	}
}
