package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps cooldown keys in Redis so several bot processes share them.
// A key is claimed with SET NX PX; a refused claim reads PTTL for the wait.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	window    time.Duration
}

func NewRedis(client *redis.Client, keyPrefix string, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{
		client:    client,
		keyPrefix: keyPrefix,
		window:    window,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := r.keyPrefix + key

	ok, err := r.client.SetNX(ctx, redisKey, 1, r.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown claim: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := r.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown ttl: %w", err)
	}
	// The key may expire between SETNX and PTTL; -2 and -1 both mean "no wait".
	if ttl < 0 {
		ttl = 0
	}
	return false, ttl, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}
