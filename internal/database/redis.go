package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var RedisClient *redis.Client

// RedisPool sizes the shared client. OTP challenges, sessions, rate limits
// and the status feed all go through it; zero fields keep the defaults.
type RedisPool struct {
	Size         int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

var defaultRedisPool = RedisPool{
	Size:         10,
	DialTimeout:  5 * time.Second,
	ReadTimeout:  3 * time.Second,
	WriteTimeout: 3 * time.Second,
}

func redisOptions(redisURI string, pool RedisPool) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URI: %w", err)
	}
	if pool.Size <= 0 {
		pool.Size = defaultRedisPool.Size
	}
	if pool.DialTimeout <= 0 {
		pool.DialTimeout = defaultRedisPool.DialTimeout
	}
	if pool.ReadTimeout <= 0 {
		pool.ReadTimeout = defaultRedisPool.ReadTimeout
	}
	if pool.WriteTimeout <= 0 {
		pool.WriteTimeout = defaultRedisPool.WriteTimeout
	}

	opt.PoolSize = pool.Size
	opt.MinIdleConns = pool.Size / 2
	opt.MaxRetries = 3
	opt.DialTimeout = pool.DialTimeout
	opt.ReadTimeout = pool.ReadTimeout
	opt.WriteTimeout = pool.WriteTimeout
	// wait no longer for a pooled conn than a command may take
	opt.PoolTimeout = pool.ReadTimeout + time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	return opt, nil
}

// ConnectRedis opens RedisClient and pings it within the dial timeout.
func ConnectRedis(redisURI string, pool RedisPool) error {
	opt, err := redisOptions(redisURI, pool)
	if err != nil {
		return err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), opt.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
	}

	RedisClient = client
	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Int("pool", opt.PoolSize).Msg("connected to Redis")
	return nil
}

func DisconnectRedis() error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Close()
}
