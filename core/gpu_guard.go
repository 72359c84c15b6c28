package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// GPUGuard GPU资源并发保护，防止多个重负载推理同时占用显存
type GPUGuard struct {
	sem            *semaphore.Weighted
	maxConcurrent  int64
	acquireTimeout time.Duration

	mu     sync.Mutex
	active int
}

// GuardStatus 当前保护器状态快照
type GuardStatus struct {
	Enabled       bool `json:"enabled"`
	MaxConcurrent int  `json:"max_concurrent"`
	Available     int  `json:"available"`
	InUse         int  `json:"in_use"`
}

// NewGPUGuard 创建保护器，maxConcurrent<=0 时禁用
func NewGPUGuard(maxConcurrent int, acquireTimeout time.Duration) *GPUGuard {
	g := &GPUGuard{acquireTimeout: acquireTimeout}
	if maxConcurrent <= 0 {
		log.Printf("GPU guard disabled (max_concurrent=%d)", maxConcurrent)
		return g
	}
	log.Printf("GPU guard initialized with max_concurrent=%d", maxConcurrent)
	g.sem = semaphore.NewWeighted(int64(maxConcurrent))
	g.maxConcurrent = int64(maxConcurrent)
	return g
}

// NewGPUGuardFromEnv 根据 GPU_MAX_CONCURRENT / GPU_ACQUIRE_TIMEOUT_SEC 创建保护器
func NewGPUGuardFromEnv() *GPUGuard {
	maxConcurrent := 1
	if v := os.Getenv("GPU_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxConcurrent = n
		}
	}
	timeout := 120 * time.Second
	if v := os.Getenv("GPU_ACQUIRE_TIMEOUT_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			timeout = time.Duration(f * float64(time.Second))
		}
	}
	return NewGPUGuard(maxConcurrent, timeout)
}

// Acquire 获取一个GPU槽位，返回释放函数。超时返回可重试错误。
func (g *GPUGuard) Acquire(ctx context.Context, operation string) (func(), error) {
	if g.sem == nil {
		return func() {}, nil
	}

	acquireCtx := ctx
	var cancel context.CancelFunc
	if g.acquireTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, g.acquireTimeout)
		defer cancel()
	}

	if err := g.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("gpu guard acquire canceled for %s: %w", operation, ctx.Err())
		}
		return nil, fmt.Errorf("gpu guard acquire timed out for %s after %v (retryable): %w", operation, g.acquireTimeout, err)
	}

	g.mu.Lock()
	g.active++
	g.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			if g.active > 0 {
				g.active--
			}
			g.mu.Unlock()
			g.sem.Release(1)
		})
	}
	return release, nil
}

// Status 返回当前状态，用于监控
func (g *GPUGuard) Status() GuardStatus {
	if g.sem == nil {
		return GuardStatus{}
	}
	g.mu.Lock()
	inUse := g.active
	g.mu.Unlock()
	available := int(g.maxConcurrent) - inUse
	if available < 0 {
		available = 0
	}
	return GuardStatus{
		Enabled:       true,
		MaxConcurrent: int(g.maxConcurrent),
		Available:     available,
		InUse:         inUse,
	}
}
