package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps Config as one JSON value so every instance shares it. The
// generation lives in a sibling key that never expires.
type RedisCache struct {
	rdb    redis.Cmdable
	key    string
	genKey string
	ttl    time.Duration
}

// Stores ARGV[2] only while KEYS[2] still holds generation ARGV[1]. Returns 1 when stored.
var redisSetIfCurrentScript = redis.NewScript(`
local gen = tonumber(redis.call("GET", KEYS[2]) or "0")
if gen ~= tonumber(ARGV[1]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

func NewRedisCache(rdb redis.Cmdable, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = "booking:availability-config:v1"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, key: key, genKey: key + ":gen", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) (Config, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("decode cached config: %w", err)
	}
	return cfg, true, nil
}

func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) Set(ctx context.Context, cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return redisSetIfCurrentScript.Run(ctx, c.rdb, []string{c.key, c.genKey},
		cfg.Generation, raw, c.ttl.Milliseconds()).Err()
}

// Invalidate bumps the generation and drops the value in one transaction.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	return err
}

// ReadyCheck pings the Redis connection backing the cache.
func ReadyCheck(rdb redis.Cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
