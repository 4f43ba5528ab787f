package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
)

// RedisRateLimit is a fixed-window counter per IP shared by every instance.
// An IP that exceeds Max within Window is blocked for Block.
type RedisRateLimit struct {
	RDB        *redis.Client
	Name       string // distinguishes limits on different routes
	Window     time.Duration
	Max        int64
	Block      time.Duration
	TrustProxy bool
	Log        zerolog.Logger
}

func (l *RedisRateLimit) keys(ip string) (string, string) {
	return RateLimitKeyPrefix + l.Name + ":" + ip, BlockedIPKeyPrefix + l.Name + ":" + ip
}

// Hit counts one request and reports the remaining quota.
func (l *RedisRateLimit) Hit(ctx context.Context, ip string) (allowed bool, remaining int64, err error) {
	countKey, blockedKey := l.keys(ip)

	blocked, err := l.RDB.Exists(ctx, blockedKey).Result()
	if err != nil {
		return false, 0, err
	}
	if blocked > 0 {
		return false, 0, nil
	}

	count, err := l.RDB.Incr(ctx, countKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		// first request opens the window
		if err := l.RDB.Expire(ctx, countKey, l.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > l.Max {
		if l.Block > 0 {
			l.RDB.Set(ctx, blockedKey, "1", l.Block)
		}
		return false, 0, nil
	}
	return true, l.Max - count, nil
}

// Middleware applies the limit. Redis failures let the request through.
func (l *RedisRateLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r, l.TrustProxy)
		allowed, remaining, err := l.Hit(r.Context(), ip)
		if err != nil {
			l.Log.Warn().Err(err).Str("limit", l.Name).Msg("rate limit check failed; allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.Window.Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, models.CodeRateLimited,
				fmt.Sprintf("Too many requests. Please try again in %d seconds.", int(l.Window.Seconds())))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.Max, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		next.ServeHTTP(w, r)
	})
}

// Unblock lifts a block early (admin function).
func (l *RedisRateLimit) Unblock(ctx context.Context, ip string) error {
	countKey, blockedKey := l.keys(ip)
	return l.RDB.Del(ctx, countKey, blockedKey).Err()
}
