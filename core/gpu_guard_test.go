package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestGPUGuardDisabled(t *testing.T) {
	guard := NewGPUGuard(0, time.Second)

	status := guard.Status()
	if status.Enabled {
		t.Fatal("expected guard disabled with max_concurrent=0")
	}

	// 禁用时获取永远成功
	release, err := guard.Acquire(context.Background(), "test_op")
	if err != nil {
		t.Fatalf("Acquire() failed on disabled guard: %v", err)
	}
	release()
}

func TestGPUGuardConcurrencyLimit(t *testing.T) {
	guard := NewGPUGuard(1, 50*time.Millisecond)
	ctx := context.Background()

	release1, err := guard.Acquire(ctx, "first")
	if err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}

	status := guard.Status()
	if !status.Enabled || status.InUse != 1 || status.Available != 0 {
		t.Errorf("unexpected status while held: %+v", status)
	}

	// 槽位占满时第二次获取超时
	_, err = guard.Acquire(ctx, "second")
	if err == nil {
		t.Fatal("expected second Acquire() to time out")
	}
	if !strings.Contains(err.Error(), "retryable") {
		t.Errorf("expected retryable timeout error, got: %v", err)
	}

	release1()
	status = guard.Status()
	if status.InUse != 0 || status.Available != 1 {
		t.Errorf("unexpected status after release: %+v", status)
	}

	// 释放后可再次获取
	release2, err := guard.Acquire(ctx, "third")
	if err != nil {
		t.Fatalf("Acquire() after release failed: %v", err)
	}
	release2()
}

func TestGPUGuardReleaseIdempotent(t *testing.T) {
	guard := NewGPUGuard(1, time.Second)

	release, err := guard.Acquire(context.Background(), "op")
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}

	// 重复释放不应使计数变负或槽位超发
	release()
	release()

	if status := guard.Status(); status.InUse != 0 || status.Available != 1 {
		t.Errorf("unexpected status after double release: %+v", status)
	}
}

func TestGPUGuardContextCanceled(t *testing.T) {
	guard := NewGPUGuard(1, time.Second)
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "holder")
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	defer release()

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := guard.Acquire(canceledCtx, "canceled"); err == nil {
		t.Fatal("expected Acquire() to fail with canceled context")
	}
}
