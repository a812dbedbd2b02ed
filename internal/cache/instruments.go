// Package cache provides the Redis-backed instrument dump cache.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"iv-sniper-bot/config"
	"iv-sniper-bot/internal/kite"
)

// InstrumentCache stores parsed exchange dumps in Redis, keyed by exchange
// and trading date. The dump changes once a day; keying by date means a
// stale entry can never be served.
type InstrumentCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis per config. Returns nil when Redis is disabled;
// a nil cache is valid and simply disables caching.
func New(cfg config.RedisConfig, logger zerolog.Logger) *InstrumentCache {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &InstrumentCache{
		client: client,
		ttl:    24 * time.Hour,
		logger: logger.With().Str("component", "InstrumentCache").Logger(),
	}
}

func (c *InstrumentCache) key(exchange string) string {
	return "instruments:" + exchange + ":" + time.Now().Format("2006-01-02")
}

// Get returns the cached dump for an exchange, if present.
func (c *InstrumentCache) Get(ctx context.Context, exchange string) ([]kite.Instrument, bool) {
	data, err := c.client.Get(ctx, c.key(exchange)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("exchange", exchange).Msg("instrument cache read failed")
		}
		return nil, false
	}

	var instruments []kite.Instrument
	if err := json.Unmarshal(data, &instruments); err != nil {
		c.logger.Warn().Err(err).Str("exchange", exchange).Msg("instrument cache entry corrupt")
		return nil, false
	}
	return instruments, true
}

// Set stores the dump for an exchange. Failures are logged and ignored,
// the next caller just refetches.
func (c *InstrumentCache) Set(ctx context.Context, exchange string, instruments []kite.Instrument) {
	data, err := json.Marshal(instruments)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(exchange), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("exchange", exchange).Msg("instrument cache write failed")
	}
}

// Close releases the Redis connection.
func (c *InstrumentCache) Close() error {
	return c.client.Close()
}
