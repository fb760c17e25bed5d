package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/8b-is/feedgate/internal/core"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingObserver struct {
	mu          sync.Mutex
	degraded    []bool
	storeErrors int
}

func (o *recordingObserver) LimiterDegraded(d bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded = append(o.degraded, d)
}

func (o *recordingObserver) LimiterStoreError(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.storeErrors++
}

func (o *recordingObserver) snapshot() ([]bool, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.degraded...), o.storeErrors
}

// fakeStore is a Store whose failures are controlled by the test.
type fakeStore struct {
	mu      sync.Mutex
	err     error
	pingErr error
	calls   int
}

func (f *fakeStore) Name() string { return "fake" }

func (f *fakeStore) set(err, pingErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err, f.pingErr = err, pingErr
}

func (f *fakeStore) Allow(ctx context.Context, _ string, limit int, _ time.Duration) (Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Decision{}, f.err
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	return allowed(limit, 1, time.Minute), nil
}

func (f *fakeStore) Remaining(_ context.Context, _ string, limit int, _ time.Duration) (core.Quota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return core.Quota{}, f.err
	}
	return core.Quota{Limit: limit, Remaining: limit - 1, ResetIn: time.Minute}, nil
}

func (f *fakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

// brokenLimiter fails every call.
type brokenLimiter struct {
	err error
}

func (b brokenLimiter) Name() string { return "broken" }

func (b brokenLimiter) Allow(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{}, b.err
}

func (b brokenLimiter) Remaining(context.Context, string, int, time.Duration) (core.Quota, error) {
	return core.Quota{}, b.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
