package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/8b-is/feedgate/internal/core"
)

const (
	DefaultKeyPrefix    = "rate_limit:"
	DefaultStoreTimeout = 500 * time.Millisecond
)

// allowScript purges, counts and records in one server-side step.
// KEYS[1] = key, ARGV = now_ms, cutoff_ms, limit, window_ms, member.
// Returns {allowed, count, reset_ms}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[3])
local window = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, ARGV[1], ARGV[5])
  redis.call('PEXPIRE', key, ARGV[4])
  count = count + 1
  allowed = 1
end

local reset = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #oldest == 2 then
  reset = tonumber(oldest[2]) + window - now
end
return {allowed, count, reset}
`)

// remainingScript purges and counts without recording.
// KEYS[1] = key, ARGV = now_ms, cutoff_ms, window_ms.
// Returns {count, reset_ms}.
var remainingScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)

local reset = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #oldest == 2 then
  reset = tonumber(oldest[2]) + window - now
end
return {count, reset}
`)

// SlidingWindow keeps a sorted set of request timestamps per identifier in Redis.
// Concurrent checks on the same identifier are serialized by the script, so the
// number of recorded requests in any trailing window never exceeds the limit.
type SlidingWindow struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

var _ Limiter = (*SlidingWindow)(nil)

func NewSlidingWindow(client redis.UniversalClient, opts ...Option) *SlidingWindow {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SlidingWindow{
		client:  client,
		prefix:  o.keyPrefix,
		timeout: o.timeout,
		now:     o.now,
	}
}

func (s *SlidingWindow) Name() string {
	return "redis"
}

// Ping checks that the store is reachable within the configured timeout.
func (s *SlidingWindow) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *SlidingWindow) key(identifier string) string {
	return s.prefix + identifier
}

func (s *SlidingWindow) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	if err := validate(limit, window); err != nil {
		return Decision{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nowMs := s.now().UnixMilli()
	windowMs := window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + "-" + xid.New().String()

	res, err := allowScript.Run(ctx, s.client, []string{s.key(identifier)},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-windowMs, 10),
		strconv.Itoa(limit),
		strconv.FormatInt(windowMs, 10),
		member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("checking sliding window for %q: %w", identifier, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("checking sliding window for %q: unexpected reply length %d", identifier, len(res))
	}

	reset := time.Duration(res[2]) * time.Millisecond
	if res[0] == 0 {
		return denied(limit, reset), nil
	}
	return allowed(limit, int(res[1]), reset), nil
}

func (s *SlidingWindow) Remaining(ctx context.Context, identifier string, limit int, window time.Duration) (core.Quota, error) {
	if err := validate(limit, window); err != nil {
		return core.Quota{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nowMs := s.now().UnixMilli()
	windowMs := window.Milliseconds()

	res, err := remainingScript.Run(ctx, s.client, []string{s.key(identifier)},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-windowMs, 10),
		strconv.FormatInt(windowMs, 10),
	).Int64Slice()
	if err != nil {
		return core.Quota{}, fmt.Errorf("reading sliding window for %q: %w", identifier, err)
	}
	if len(res) != 2 {
		return core.Quota{}, fmt.Errorf("reading sliding window for %q: unexpected reply length %d", identifier, len(res))
	}

	return core.Quota{
		Limit:     limit,
		Remaining: max(0, limit-int(res[0])),
		ResetIn:   time.Duration(res[1]) * time.Millisecond,
	}, nil
}
