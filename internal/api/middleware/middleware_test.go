package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netgeist/sttrelay/internal/cache"
	"github.com/netgeist/sttrelay/internal/cors"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func post(remote, origin string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = remote
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestMemoryLimiterBurstThenReject(t *testing.T) {
	ml := NewMemoryLimiter(0.001, 2)
	defer ml.Close()
	h := RateLimit(ml, cors.Default(), discardLogger())(okHandler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, post("10.0.0.1:5000", ""))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("10.0.0.1:5001", "https://netgeist.ai"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "https://netgeist.ai", rec.Header().Get(cors.HeaderAllowOrigin))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body["message"])

	// A different client has its own bucket.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, post("10.0.0.2:5000", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitSkipsPreflight(t *testing.T) {
	ml := NewMemoryLimiter(0.001, 1)
	defer ml.Close()
	h := RateLimit(ml, cors.Default(), discardLogger())(okHandler)

	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(failingLimiter{}, cors.Default(), discardLogger())(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("10.0.0.1:5000", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMemoryLimiterEvictsIdleVisitors(t *testing.T) {
	ml := NewMemoryLimiter(1, 1)
	defer ml.Close()

	_, _ = ml.Allow(context.Background(), "10.0.0.1")
	ml.evictIdle(time.Now().Add(time.Minute))
	assert.Len(t, ml.visitors, 1)

	ml.evictIdle(time.Now().Add(5 * time.Minute))
	assert.Empty(t, ml.visitors)
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rl := NewRedisLimiter(cache.NewCounter(client, "test"), 2, time.Second)
	fixed := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	fixed = fixed.Add(time.Second)
	ok, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "next window starts fresh")

	mr.SetError("READONLY")
	_, err = rl.Allow(ctx, "10.0.0.1")
	assert.Error(t, err)
}

func TestLoggingRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized origin", http.StatusForbidden)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, post("10.0.0.1:5000", "https://evil.example"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, float64(http.StatusForbidden), line["status"])
	assert.Equal(t, "https://evil.example", line["origin"])
	assert.Equal(t, "POST", line["method"])
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientIP(&http.Request{RemoteAddr: "10.0.0.1:443"}))
	assert.Equal(t, "203.0.113.9", clientIP(&http.Request{RemoteAddr: "203.0.113.9"}))
}
