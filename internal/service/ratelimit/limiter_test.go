package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowDrainsCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("vendor", 3, 0.001) {
			t.Fatalf("expected token %d to be granted", i)
		}
	}
	if l.Allow("vendor", 3, 0.001) {
		t.Fatalf("expected bucket to be empty")
	}
}

func TestAllowKeysIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.001) {
		t.Fatalf("expected token for a")
	}
	if !l.Allow("b", 1, 0.001) {
		t.Fatalf("expected token for b")
	}
	if l.Allow("a", 1, 0.001) {
		t.Fatalf("bucket a should be drained")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New()
	if !l.Allow("vendor", 1, 0.001) {
		t.Fatalf("expected first token")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "vendor", 1, 0.001); err == nil {
		t.Fatalf("expected context error from exhausted bucket")
	}
}

func TestWaitRefills(t *testing.T) {
	l := New()
	if !l.Allow("vendor", 1, 50) {
		t.Fatalf("expected first token")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Wait(ctx, "vendor", 1, 50); err != nil {
		t.Fatalf("expected refill before deadline: %v", err)
	}
}
