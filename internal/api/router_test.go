package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netgeist/sttrelay/internal/api/middleware"
	"github.com/netgeist/sttrelay/internal/config"
	"github.com/netgeist/sttrelay/internal/relay"
)

const origin = "https://netgeist.ai"

func newTestServer(t *testing.T, limiter middleware.Limiter) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The chi request id must reach the STT service.
		if r.Header.Get("X-Request-ID") == "" {
			w.WriteHeader(http.StatusPreconditionRequired)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"labas"}`))
	}))
	t.Cleanup(upstream.Close)

	h := relay.NewHandler(relay.Config{
		STTURL:          upstream.URL,
		STTToken:        "secret",
		UpstreamTimeout: 5 * time.Second,
		FetchTimeout:    5 * time.Second,
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(h, limiter, logger).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body io.Reader, contentType string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Origin", origin)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func audioForm(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip.wav")
	require.NoError(t, err)
	_, err = fw.Write([]byte("RIFF....WAVE"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestRouterRelaysOnAnyPath(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/", "/transcribe", "/a/b/c"} {
		body, ct := audioForm(t)
		resp, got := do(t, http.MethodPost, srv.URL+path, body, ct)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.JSONEq(t, `{"text":"labas"}`, got, path)
		assert.Equal(t, origin, resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestRouterConfigProbe(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, got := do(t, http.MethodGet, srv.URL+"/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Configuration is ok", got)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, method := range []string{http.MethodPut, http.MethodDelete, "PROPFIND"} {
		resp, got := do(t, method, srv.URL+"/", nil, "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, method)
		assert.Equal(t, "Method not allowed", got, method)
	}
}

func TestRouterRateLimit(t *testing.T) {
	ml := middleware.NewMemoryLimiter(0.001, 1)
	t.Cleanup(ml.Close)
	srv := newTestServer(t, ml)

	resp, _ := do(t, http.MethodGet, srv.URL+"/", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, got := do(t, http.MethodGet, srv.URL+"/", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Rate limit exceeded"}`, got)

	resp, _ = do(t, http.MethodOptions, srv.URL+"/", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterDefaultConfigAnswersRepeatedRequests(t *testing.T) {
	for _, key := range []string{"RATE_LIMIT_ENABLED", "RATE_LIMIT_BACKEND", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}
	cfg, err := config.Load()
	require.NoError(t, err)

	limiter, release := NewLimiter(context.Background(), cfg)
	t.Cleanup(release)
	assert.Nil(t, limiter)
	srv := newTestServer(t, limiter)

	for i := 0; i < 15; i++ {
		body, ct := audioForm(t)
		resp, got := do(t, http.MethodPost, srv.URL+"/", body, ct)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i)
		assert.JSONEq(t, `{"text":"labas"}`, got)
	}
}

func TestNewLimiterBackends(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := &config.Config{RateLimit: config.RateLimitConfig{Enabled: true, Backend: "memory", RPS: 1, Burst: 1}}
		l, release := NewLimiter(context.Background(), cfg)
		t.Cleanup(release)
		assert.IsType(t, &middleware.MemoryLimiter{}, l)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{
			RateLimit: config.RateLimitConfig{Enabled: true, Backend: "redis", RPS: 1, Burst: 1},
			Redis:     config.RedisConfig{Addr: mr.Addr()},
		}
		l, release := NewLimiter(context.Background(), cfg)
		t.Cleanup(release)
		assert.IsType(t, &middleware.RedisLimiter{}, l)
	})

	t.Run("redis unreachable falls back to memory", func(t *testing.T) {
		cfg := &config.Config{
			RateLimit: config.RateLimitConfig{Enabled: true, Backend: "redis", RPS: 1, Burst: 1},
			Redis:     config.RedisConfig{Addr: "127.0.0.1:1"},
		}
		l, release := NewLimiter(context.Background(), cfg)
		t.Cleanup(release)
		assert.IsType(t, &middleware.MemoryLimiter{}, l)
	})
}
