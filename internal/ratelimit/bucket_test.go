package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBucketAllowsBurst(t *testing.T) {
	b := NewBucket(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !b.TryTake() {
			t.Fatalf("expected TryTake to succeed for request %d (within capacity)", i)
		}
	}
	if b.TryTake() {
		t.Fatal("expected TryTake to fail once capacity is exhausted")
	}
}

func TestBucketDefaults(t *testing.T) {
	b := NewBucket(0, 0)
	if b.capacity != DefaultCapacity {
		t.Fatalf("capacity = %v, want %v", b.capacity, float64(DefaultCapacity))
	}
	wantRate := float64(DefaultCapacity) / DefaultWindow.Seconds()
	if b.rate != wantRate {
		t.Fatalf("rate = %v, want %v", b.rate, wantRate)
	}
}

func TestBucketRefill(t *testing.T) {
	// 100 tokens over 100ms = 1 token per millisecond.
	b := NewBucket(100, 100*time.Millisecond)
	for i := 0; i < 100; i++ {
		if !b.TryTake() {
			t.Fatalf("expected token %d within capacity", i)
		}
	}
	if b.TryTake() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(5 * time.Millisecond)
	if !b.TryTake() {
		t.Fatal("expected at least one token after refill interval")
	}
}

// Issuing one call past capacity must delay the extra call by roughly the
// accrual time for one token -- never drop or error it.
func TestWaitDelaysInsteadOfFailing(t *testing.T) {
	// 5 tokens per 500ms: one token accrues every 100ms.
	b := NewBucket(5, 500*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait %d returned error: %v", i, err)
		}
	}

	start := time.Now()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("6th Wait returned error: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Fatalf("6th call returned after %v, expected a delay near one token accrual (~100ms)", elapsed)
	}
	if elapsed > 400*time.Millisecond {
		t.Fatalf("6th call delayed %v, far beyond one token accrual", elapsed)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	b := NewBucket(1, time.Hour)
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx)
	if err == nil {
		t.Fatal("expected context deadline error from Wait on empty bucket")
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	a := NewBucket(1, time.Hour)
	b := NewBucket(1, time.Hour)

	if !a.TryTake() {
		t.Fatal("bucket a should start full")
	}
	if !b.TryTake() {
		t.Fatal("draining a must not affect b")
	}
}
