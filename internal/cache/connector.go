package cache

import (
	"context"
	"fungily.io/fungily-score/internal/config"
	"fungily.io/fungily-score/pkg/errors"
	"fungily.io/fungily-score/pkg/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"strconv"
)

var (
	Redis       *redis.Client
	RateLimiter *redis_rate.Limiter
)

// Init connects to Redis. A credential without address leaves the cache
// disabled: sessions stay in memory and rate limiting allows everything.
func Init(cred *config.DBCredential) error {
	if cred == nil || cred.Address == "" {
		log.Info("Redis not configured, cache disabled...")
		return nil
	}
	db, _ := strconv.ParseInt(cred.Database, 10, 64)
	client := redis.NewClient(&redis.Options{
		Addr:     cred.GetRedisAddress(),
		Password: cred.Password,
		DB:       int(db),
	})
	if _, err := client.Ping(context.TODO()).Result(); err != nil {
		client.Close()
		return errors.Wrap(err, "ping to redis")
	}
	Use(client)
	log.Infof("Redis connected at %v...", cred.GetRedisAddress())
	return nil
}

// Use installs an existing client.
func Use(client *redis.Client) {
	Redis = client
	RateLimiter = redis_rate.NewLimiter(client)
}

func Enabled() bool {
	return Redis != nil
}

func Close() {
	if Redis != nil {
		Redis.Close()
		Redis = nil
		RateLimiter = nil
	}
}

// Allow spends one request of key's per-minute budget.
func Allow(ctx context.Context, key string, perMinute int) (bool, error) {
	if RateLimiter == nil || perMinute <= 0 {
		return true, nil
	}
	res, err := RateLimiter.Allow(ctx, key, redis_rate.PerMinute(perMinute))
	if err != nil {
		return true, errors.WrapAndReport(err, "rate limit")
	}
	return res.Allowed > 0, nil
}

func DeleteFromPrefix(prefix string) error {
	var (
		cursor uint64
		match        = prefix + "*"
		ctx          = context.TODO()
		count  int64 = 200
	)
	log.Debugf("deleting cache pattern %v", match)
	for {
		keys, c, err := Redis.Scan(ctx, cursor, match, count).Result()
		if err != nil {
			return errors.WrapAndReport(err, "scan caches")
		}
		cursor = c
		if len(keys) > 0 {
			err = Redis.Del(ctx, keys...).Err()
			if err != nil {
				return errors.WrapAndReport(err, "delete caches")
			}
		}
		if c == 0 {
			return nil
		}
	}
}
