package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWait_FirstCallWithinBurst(t *testing.T) {
	l := New(1000, 1) // burst of one: the first Wait takes the initial token
	ctx := context.Background()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	l := New(0.001, 1) // effectively never refills within the test window
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected context deadline to cancel the second Wait")
	}
}
