package ratelimit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/8b-is/feedgate/internal/config"
)

// RedisStoreConfig holds the redis specific options of config.StoreConfig.
type RedisStoreConfig struct {
	// URL in the form redis://[user:password@]host:port/db. Takes precedence over Addr.
	URL string `mapstructure:"url"`

	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// KeyPrefix defaults to "rate_limit:".
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisStoreConfig) options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		if c.Password != "" {
			opts.Password = c.Password
		}
		if c.DB != 0 {
			opts.DB = c.DB
		}
		return opts, nil
	}
	addr := c.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{Addr: addr, Password: c.Password, DB: c.DB}, nil
}

// Selection is the limiter chosen at startup.
type Selection struct {
	Limiter Limiter

	// Local is the in-process fixed window, always present.
	Local *FixedWindow

	// Failover is nil when no shared store is in use.
	Failover *Failover

	// RecheckInterval is how often a degraded Failover should be rechecked. 0 disables it.
	RecheckInterval time.Duration

	client redis.UniversalClient
}

func (s *Selection) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Select builds the limiter for cfg. An unreachable redis store is not an error:
// the in-process fixed window is used instead. If re-probing is enabled, the store
// is kept and restored once it answers.
func Select(ctx context.Context, cfg config.StoreConfig, opts ...Option) (*Selection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	local := NewFixedWindow(opts...)

	switch cfg.Type {
	case "", config.StoreMemory:
		log.Info().Msg("rate limiting with in-process fixed window")
		return &Selection{Limiter: local, Local: local}, nil
	case config.StoreRedis:
	default:
		return nil, fmt.Errorf("unknown rate limit store type %q", cfg.Type)
	}

	var conf RedisStoreConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &conf,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for redis store: %w", err)
	}
	if err := decoder.Decode(cfg.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config for redis store: %w", err)
	}
	redisOpts, err := conf.options()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)
	storeOpts := append(slices.Clone(opts), WithTimeout(cfg.Timeout))
	if conf.KeyPrefix != "" {
		storeOpts = append(storeOpts, WithKeyPrefix(conf.KeyPrefix))
	}
	sliding := NewSlidingWindow(client, storeOpts...)

	if err := sliding.Ping(ctx); err != nil {
		if cfg.RecheckInterval <= 0 {
			log.Warn().Err(err).Str("addr", redisOpts.Addr).
				Msg("rate limit store unreachable, using in-process fixed window for this process")
			o.observer.LimiterDegraded(true)
			_ = client.Close()
			return &Selection{Limiter: local, Local: local}, nil
		}

		log.Warn().Err(err).Str("addr", redisOpts.Addr).Dur("recheck_interval", cfg.RecheckInterval).
			Msg("rate limit store unreachable, using in-process fixed window until it recovers")
		failover := NewFailover(sliding, local, opts...)
		failover.degrade(err)
		return &Selection{Limiter: failover, Local: local, Failover: failover, RecheckInterval: cfg.RecheckInterval, client: client}, nil
	}

	log.Info().Str("addr", redisOpts.Addr).Msg("rate limiting with redis sliding window")
	failover := NewFailover(sliding, local, opts...)
	return &Selection{
		Limiter:         failover,
		Local:           local,
		Failover:        failover,
		RecheckInterval: cfg.RecheckInterval,
		client:          client,
	}, nil
}
