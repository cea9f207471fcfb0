package nemesis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript implements the fixed window server-side so the check-and-incr
// is atomic across gateway instances. A denied request never advances the
// counter.
var incrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

if current >= limit then
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then ttl = window_ms end
	return {0, 0, ttl}
end

current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], window_ms)
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then ttl = window_ms end
return {1, limit - current, ttl}
`)

// RedisStore is a Redis-backed Store shared by a fleet of gateway
// instances. Window expiry rides on key TTLs, so there is nothing to sweep.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr string, db int, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Incr runs the atomic window script for key.
func (s *RedisStore) Incr(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := incrScript.Run(ctx, s.client, []string{redisKey(key)}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("failed to run limit script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected limit script reply: %v", vals)
	}

	return Result{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
		ResetAt:   time.Now().Add(time.Duration(vals[2]) * time.Millisecond),
	}, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(key string) string {
	return "nemesis:window:" + key
}
