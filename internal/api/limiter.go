package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netgeist/sttrelay/internal/api/middleware"
	"github.com/netgeist/sttrelay/internal/cache"
	"github.com/netgeist/sttrelay/internal/config"
)

// NewLimiter builds the configured rate limiter and its release func. It
// returns a nil Limiter when rate limiting is disabled, which is the default.
// A Redis backend that cannot be reached falls back to the in-memory limiter.
func NewLimiter(ctx context.Context, cfg *config.Config) (middleware.Limiter, func()) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		slog.Info("rate limiting disabled")
		return nil, func() {}
	}

	if rl.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		counter := cache.NewCounter(rdb, "sttrelay:rl")

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := counter.Ping(pingCtx)
		cancel()
		if err == nil {
			slog.Info("rate limiting via redis", "addr", cfg.Redis.Addr, "limit", rl.Burst)
			return middleware.NewRedisLimiter(counter, rl.Burst, time.Second), func() { _ = rdb.Close() }
		}
		slog.Warn("redis unavailable, falling back to in-memory rate limiting", "error", err)
		_ = rdb.Close()
	}

	ml := middleware.NewMemoryLimiter(rl.RPS, rl.Burst)
	slog.Info("rate limiting in memory", "rps", rl.RPS, "burst", rl.Burst)
	return ml, ml.Close
}
