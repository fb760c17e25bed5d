package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFixedWindow_Ceiling(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	fw := NewFixedWindow(WithClock(clock.Now))

	for i := 1; i <= 3; i++ {
		d, err := fw.Allow(ctx, "agent:a", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow() #%d error: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("Allow() #%d denied, want allowed", i)
		}
		if d.Quota.Remaining != 3-i {
			t.Errorf("Allow() #%d remaining = %d, want %d", i, d.Quota.Remaining, 3-i)
		}
		clock.Advance(time.Second)
	}

	d, err := fw.Allow(ctx, "agent:a", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow() #4 error: %v", err)
	}
	if d.Allowed {
		t.Fatalf("Allow() #4 allowed, want denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %s, want within (0, 1m]", d.RetryAfter)
	}
	if d.RetryAfter != 57*time.Second {
		t.Errorf("RetryAfter = %s, want 57s", d.RetryAfter)
	}
	if d.Quota.Remaining != 0 || d.Quota.Limit != 3 {
		t.Errorf("Quota = %+v, want limit 3 remaining 0", d.Quota)
	}

	clock.Advance(time.Minute)
	d, err = fw.Allow(ctx, "agent:a", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow() after window error: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("Allow() after window denied, want allowed")
	}
	if d.Quota.Remaining != 2 {
		t.Errorf("Remaining after reset = %d, want 2 (count reset to 1)", d.Quota.Remaining)
	}
	if d.Quota.ResetIn != time.Minute {
		t.Errorf("ResetIn after reset = %s, want 1m", d.Quota.ResetIn)
	}
}

func TestFixedWindow_IdentifiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	fw := NewFixedWindow()

	if d, _ := fw.Allow(ctx, "a", 1, time.Minute); !d.Allowed {
		t.Fatalf("first call for a denied")
	}
	if d, _ := fw.Allow(ctx, "a", 1, time.Minute); d.Allowed {
		t.Fatalf("second call for a allowed")
	}
	if d, _ := fw.Allow(ctx, "b", 1, time.Minute); !d.Allowed {
		t.Fatalf("first call for b denied")
	}
}

func TestFixedWindow_BoundaryBurst(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	fw := NewFixedWindow(WithClock(clock.Now))

	// one call opens the window at t=0; two more at t=59s and three at t=60s all pass
	if _, err := fw.Allow(ctx, "x", 3, time.Minute); err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	clock.Advance(59 * time.Second)
	admitted := 1
	for range 2 {
		if d, _ := fw.Allow(ctx, "x", 3, time.Minute); d.Allowed {
			admitted++
		}
	}
	clock.Advance(time.Second)
	for range 3 {
		if d, _ := fw.Allow(ctx, "x", 3, time.Minute); d.Allowed {
			admitted++
		}
	}
	if admitted != 6 {
		t.Errorf("admitted %d requests across the boundary, want 6", admitted)
	}
}

func TestFixedWindow_Remaining(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	fw := NewFixedWindow(WithClock(clock.Now))

	q, err := fw.Remaining(ctx, "a", 5, time.Minute)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if q.Remaining != 5 || q.Limit != 5 || q.ResetIn != time.Minute {
		t.Errorf("Remaining() unknown = %+v, want full quota", q)
	}

	_, _ = fw.Allow(ctx, "a", 5, time.Minute)
	_, _ = fw.Allow(ctx, "a", 5, time.Minute)
	clock.Advance(20 * time.Second)

	q, _ = fw.Remaining(ctx, "a", 5, time.Minute)
	if q.Remaining != 3 || q.ResetIn != 40*time.Second {
		t.Errorf("Remaining() active = %+v, want remaining 3 reset 40s", q)
	}

	// reading must not record
	q, _ = fw.Remaining(ctx, "a", 5, time.Minute)
	if q.Remaining != 3 {
		t.Errorf("Remaining() changed the count: %+v", q)
	}

	clock.Advance(40 * time.Second)
	q, _ = fw.Remaining(ctx, "a", 5, time.Minute)
	if q.Remaining != 5 {
		t.Errorf("Remaining() expired = %+v, want full quota", q)
	}
}

func TestFixedWindow_Prune(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	fw := NewFixedWindow(WithClock(clock.Now))

	_, _ = fw.Allow(ctx, "short", 1, 10*time.Second)
	_, _ = fw.Allow(ctx, "long", 1, time.Minute)
	if fw.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", fw.Len())
	}

	clock.Advance(30 * time.Second)
	if n := fw.Prune(); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if fw.Len() != 1 {
		t.Errorf("Len() after prune = %d, want 1", fw.Len())
	}
}

func TestFixedWindow_InvalidLimit(t *testing.T) {
	fw := NewFixedWindow()
	tests := []struct {
		name   string
		limit  int
		window time.Duration
	}{
		{name: "Zero Limit", limit: 0, window: time.Minute},
		{name: "Negative Limit", limit: -1, window: time.Minute},
		{name: "Zero Window", limit: 1, window: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fw.Allow(context.Background(), "a", tt.limit, tt.window); !errors.Is(err, ErrInvalidLimit) {
				t.Errorf("Allow() error = %v, want ErrInvalidLimit", err)
			}
		})
	}
}

func TestFixedWindow_Concurrent(t *testing.T) {
	fw := NewFixedWindow()
	const limit = 10

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := fw.Allow(context.Background(), "shared", limit, time.Minute)
			if err != nil {
				t.Errorf("Allow() error: %v", err)
				return
			}
			if d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != limit {
		t.Errorf("admitted = %d, want %d", got, limit)
	}
}
