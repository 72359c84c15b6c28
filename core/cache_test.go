package core

import (
	"strings"
	"testing"
	"time"
)

func TestCacheKeyFormat(t *testing.T) {
	key := CacheKey("video_1", 3, "some transcript text", "suspicion")
	parts := strings.Split(key, ":")
	if len(parts) != 4 {
		t.Fatalf("expected 4 key parts, got %d: %s", len(parts), key)
	}
	if parts[0] != "video_1" || parts[1] != "3" || parts[3] != "suspicion" {
		t.Errorf("unexpected key components: %s", key)
	}
	if len(parts[2]) != 10 {
		t.Errorf("expected 10-char hash, got %q", parts[2])
	}

	// 相同文本产生相同键，不同文本产生不同键
	if CacheKey("video_1", 3, "some transcript text", "suspicion") != key {
		t.Error("cache key not deterministic")
	}
	if CacheKey("video_1", 3, "different text", "suspicion") == key {
		t.Error("different text should produce different key")
	}
	if CacheKey("video_1", 3, "some transcript text", "points") == key {
		t.Error("different kind should produce different key")
	}
}

func TestResultCacheRoundTrip(t *testing.T) {
	cache := NewResultCache(time.Hour, 100)
	defer cache.Close()

	if _, ok := cache.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	result := SuspicionResult{Suspicious: true, Confidence: 0.8, Method: "llm"}
	cache.Set("k1", result)

	cached, ok := cache.Get("k1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	got, ok := cached.(SuspicionResult)
	if !ok {
		t.Fatalf("unexpected cached type %T", cached)
	}
	if !got.Suspicious || got.Confidence != 0.8 || got.Method != "llm" {
		t.Errorf("unexpected cached value: %+v", got)
	}
}

func TestResultCacheTTLExpiry(t *testing.T) {
	cache := NewResultCache(10*time.Millisecond, 100)
	defer cache.Close()

	cache.Set("k1", "v1")
	if _, ok := cache.Get("k1"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := cache.Get("k1"); ok {
		t.Fatal("expected miss after TTL expiry")
	}
	if cache.Len() != 0 {
		t.Errorf("expected lazy expiry to remove entry, len=%d", cache.Len())
	}
}

func TestResultCacheEviction(t *testing.T) {
	cache := NewResultCache(time.Hour, 2)
	defer cache.Close()

	cache.Set("a", 1)
	time.Sleep(time.Millisecond)
	cache.Set("b", 2)
	time.Sleep(time.Millisecond)
	cache.Set("c", 3)

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", cache.Len())
	}
	// 最旧的条目被淘汰
	if _, ok := cache.Get("a"); ok {
		t.Error("expected oldest entry evicted")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("expected newest entry retained")
	}
}
