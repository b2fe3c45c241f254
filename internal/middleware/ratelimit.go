package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	apierrors "github.com/yukikurage/tasko/internal/errors"
	"github.com/yukikurage/tasko/internal/metrics"
)

const rateLimiterSweepInterval = 5 * time.Minute

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Count     int
	WindowEnd time.Time
}

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
}

// MemoryRateLimiter keeps counters in process. It only limits a single
// instance.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]rateState
	swept   time.Time
}

type rateState struct {
	count     int
	windowEnd time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		entries: make(map[string]rateState),
		swept:   time.Now(),
	}
}

func (rl *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.swept) > rateLimiterSweepInterval {
		for k, state := range rl.entries {
			if now.After(state.windowEnd) {
				delete(rl.entries, k)
			}
		}
		rl.swept = now
	}

	state, ok := rl.entries[key]
	if !ok || now.After(state.windowEnd) {
		state = rateState{count: 1, windowEnd: now.Add(window)}
		rl.entries[key] = state
		return Decision{Allowed: true, Count: state.count, WindowEnd: state.windowEnd}
	}
	if state.count >= limit {
		return Decision{Allowed: false, Count: state.count, WindowEnd: state.windowEnd}
	}
	state.count++
	rl.entries[key] = state
	return Decision{Allowed: true, Count: state.count, WindowEnd: state.windowEnd}
}

// RedisRateLimiter shares counters between instances with SET NX EX + INCR.
// When Redis is unreachable the in-memory limiter answers instead.
type RedisRateLimiter struct {
	client   *redis.Client
	prefix   string
	timeout  time.Duration
	fallback *MemoryRateLimiter
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		prefix:   "tasko:ratelimit:",
		timeout:  250 * time.Millisecond,
		fallback: NewMemoryRateLimiter(),
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	// SET NX EX creates the window with its expiry in the same transaction
	// as the first INCR.
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, window)
		incr = pipe.Incr(ctx, redisKey)
		pttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("op", "incr").Warn("redis rate limiter unavailable, using local counters")
		return rl.fallback.Allow(ctx, key, limit, window)
	}
	counter := incr.Val()
	ttl := pttl.Val()
	if ttl < 0 {
		// A counter without expiry would never reset
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			logrus.WithError(err).WithField("op", "expire").Warn("redis rate limiter error")
		}
		ttl = window
	}
	return Decision{
		Allowed:   int(counter) <= limit,
		Count:     int(counter),
		WindowEnd: time.Now().Add(ttl),
	}
}

// RateLimit limits requests per client IP and route. Rejected requests get
// 429 with Retry-After.
func RateLimit(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		decision := limiter.Allow(c.Request.Context(), route+":"+c.ClientIP(), limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		remaining := limit - decision.Count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !decision.Allowed {
			retry := int(time.Until(decision.WindowEnd).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			metrics.RecordRateLimitHit(route)
			apierrors.TooManyRequests(c, "Too many requests, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
