package fxrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transfer-reconciliation-service/pkg/logger"

	"github.com/go-redis/cache/v9"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	// localCacheSize is the number of entries kept in-process alongside Redis.
	localCacheSize = 10000

	// DefaultRedisTTL is how long a stored rate stays in Redis.
	DefaultRedisTTL = 24 * time.Hour
)

// cachedRate is the Redis representation of a rate.
type cachedRate struct {
	Rate   string `msgpack:"rate"`
	Source string `msgpack:"source"`
}

// RedisTier puts a Redis hot tier in front of another CacheStore. Only rows
// read from the wrapped store are cached here.
type RedisTier struct {
	next   CacheStore
	cache  *cache.Cache
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisClient connects to a single Redis instance given an address or a
// redis:// URL, and pings it.
func NewRedisClient(ctx context.Context, dsn string) (redis.UniversalClient, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("redis dsn cannot be empty")
	}

	var opts *redis.Options
	if strings.Contains(dsn, "://") {
		parsed, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis dsn")
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: dsn}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// NewRedisTier wraps next with a Redis-backed cache.
func NewRedisTier(client redis.UniversalClient, next CacheStore, ttl time.Duration, log logger.Logger) *RedisTier {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &RedisTier{
		next: next,
		cache: cache.New(&cache.Options{
			Redis:      client,
			LocalCache: cache.NewTinyLFU(localCacheSize, time.Minute),
		}),
		ttl:    ttl,
		logger: log.WithComponent("fxrate_redis"),
	}
}

func redisKey(key RateKey) string {
	return fmt.Sprintf("fxrate:%s", key)
}

// LookupRate implements CacheStore. Redis errors degrade to the wrapped store.
func (t *RedisTier) LookupRate(ctx context.Context, key RateKey) (*Rate, error) {
	var hit cachedRate
	err := t.cache.Get(ctx, redisKey(key), &hit)
	switch {
	case err == nil:
		if value, perr := decimal.NewFromString(hit.Rate); perr == nil {
			return &Rate{Value: value, Source: hit.Source}, nil
		}
		t.logger.WithField("key", redisKey(key)).Warn("Discarding unreadable cached rate")
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		t.logger.WithError(err).Warn("Redis rate lookup failed")
	}

	rate, err := t.next.LookupRate(ctx, key)
	if err != nil || rate == nil {
		return rate, err
	}

	if err := t.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisKey(key),
		Value: cachedRate{Rate: rate.Value.String(), Source: rate.Source},
		TTL:   t.ttl,
	}); err != nil {
		t.logger.WithError(err).Warn("Failed to store rate in redis")
	}

	return rate, nil
}
