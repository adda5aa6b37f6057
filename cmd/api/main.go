package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netgeist/sttrelay/internal/api"
	"github.com/netgeist/sttrelay/internal/config"
	"github.com/netgeist/sttrelay/internal/logging"
	"github.com/netgeist/sttrelay/internal/metrics"
	"github.com/netgeist/sttrelay/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(
		logging.WithLevel(cfg.Log.Level),
		logging.WithFormat(cfg.Log.Format),
		logging.WithFile(cfg.Log.File),
	)
	slog.SetDefault(logger)

	if !cfg.STT.Configured() {
		slog.Warn("STT_URL or STT_TOKEN not set, relay will report missing configuration")
	}

	m := metrics.New()
	ctx := context.Background()

	limiter, closeLimiter := api.NewLimiter(ctx, cfg)
	defer closeLimiter()

	h := relay.NewHandler(relay.Config{
		STTURL:          cfg.STT.URL,
		STTToken:        cfg.STT.Token,
		UpstreamTimeout: cfg.STT.Timeout,
		FetchTimeout:    cfg.Audio.FetchTimeout,
	}, relay.WithLogger(logger), relay.WithMetrics(m))

	router := api.NewRouter(h, limiter, logger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting relay server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server forced shutdown", "error", err)
		}
	}
	slog.Info("server stopped")
}
