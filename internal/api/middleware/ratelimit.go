package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/netgeist/sttrelay/internal/cache"
	"github.com/netgeist/sttrelay/internal/cors"
)

// Limiter decides whether one more request from key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per client in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idle     time.Duration
	stop     chan struct{}
	once     sync.Once
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	ml := &MemoryLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		idle:     3 * time.Minute,
		stop:     make(chan struct{}),
	}
	go ml.cleanup(time.Minute)
	return ml
}

func (ml *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	v, exists := ml.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(ml.rate, ml.burst)}
		ml.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow(), nil
}

// Close stops the eviction loop.
func (ml *MemoryLimiter) Close() {
	ml.once.Do(func() { close(ml.stop) })
}

func (ml *MemoryLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ml.stop:
			return
		case <-ticker.C:
			ml.evictIdle(time.Now())
		}
	}
}

func (ml *MemoryLimiter) evictIdle(now time.Time) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	for key, v := range ml.visitors {
		if now.Sub(v.lastSeen) > ml.idle {
			delete(ml.visitors, key)
		}
	}
}

// RedisLimiter allows up to limit requests per key in each fixed window,
// shared by every relay instance using the same Redis.
type RedisLimiter struct {
	counter *cache.Counter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewRedisLimiter(counter *cache.Counter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		now:     time.Now,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := rl.counter.Hit(ctx, key, rl.window, rl.now())
	if err != nil {
		return false, err
	}
	return n <= rl.limit, nil
}

// RateLimit rejects clients over their budget with 429. Preflight requests
// pass through untouched, and limiter errors fail open. Clients are keyed by
// RemoteAddr as rewritten by chi's RealIP, so the relay must sit behind a
// proxy that sets X-Forwarded-For / X-Real-IP itself.
func RateLimit(l Limiter, policy *cors.Policy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				policy.Apply(w.Header(), policy.Decide(r))
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"message":"Rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
