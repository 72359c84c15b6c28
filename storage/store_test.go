package storage

import (
	"context"
	"testing"

	"videoModerate/config"
)

func TestMemoryEmbeddingStoreRoundTrip(t *testing.T) {
	store := newMemoryEmbeddingStore()
	ctx := context.Background()

	if _, ok := store.GetFrameEmbedding(ctx, "vid", 1.5); ok {
		t.Fatal("expected miss on empty store")
	}

	vec := []float32{0.1, 0.2, 0.3}
	if err := store.PutFrameEmbedding(ctx, "vid", 1.5, vec); err != nil {
		t.Fatalf("PutFrameEmbedding() failed: %v", err)
	}

	got, ok := store.GetFrameEmbedding(ctx, "vid", 1.5)
	if !ok {
		t.Fatal("expected hit after put")
	}
	if len(got) != 3 || got[0] != 0.1 {
		t.Errorf("unexpected embedding: %v", got)
	}

	// 不同视频或时间戳互不干扰
	if _, ok := store.GetFrameEmbedding(ctx, "other", 1.5); ok {
		t.Error("expected miss for different video")
	}
	if _, ok := store.GetFrameEmbedding(ctx, "vid", 2.5); ok {
		t.Error("expected miss for different timestamp")
	}

	if err := store.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestMemoryEmbeddingStoreTimestampKeying(t *testing.T) {
	store := newMemoryEmbeddingStore()
	ctx := context.Background()

	// 毫秒精度内的时间戳视为同一帧
	store.PutFrameEmbedding(ctx, "vid", 1.0001, []float32{1})
	if _, ok := store.GetFrameEmbedding(ctx, "vid", 1.0004); !ok {
		t.Error("expected sub-millisecond timestamps to share a key")
	}
	if _, ok := store.GetFrameEmbedding(ctx, "vid", 1.01); ok {
		t.Error("expected distinct key beyond millisecond precision")
	}
}

func TestNewEmbeddingStoreFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{Store: "memory"}
	store := NewEmbeddingStore(cfg)
	if _, ok := store.(*MemoryEmbeddingStore); !ok {
		t.Errorf("expected memory store, got %T", store)
	}

	// 未知后端回退内存
	cfg = &config.Config{Store: "unknown"}
	store = NewEmbeddingStore(cfg)
	if _, ok := store.(*MemoryEmbeddingStore); !ok {
		t.Errorf("expected memory fallback for unknown backend, got %T", store)
	}
}
