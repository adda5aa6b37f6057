package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/netgeist/sttrelay/internal/api/middleware"
	"github.com/netgeist/sttrelay/internal/relay"
)

type Router struct {
	mux     *chi.Mux
	relay   *relay.Handler
	limiter middleware.Limiter
	logger  *slog.Logger
}

// NewRouter wires the relay behind the global middleware stack. A nil limiter
// disables rate limiting.
func NewRouter(h *relay.Handler, limiter middleware.Limiter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		mux:     chi.NewRouter(),
		relay:   h,
		limiter: limiter,
		logger:  logger,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	// RealIP trusts forwarding headers; deploy behind a proxy that sets them.
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.logger))
	r.Use(chimiddleware.Recoverer)
	if rt.limiter != nil {
		r.Use(middleware.RateLimit(rt.limiter, rt.relay.Policy(), rt.logger))
	}

	// The relay answers on every path and decides on the method itself, so
	// chi's own 404 and 405 responses are routed to it as well.
	r.Handle("/", rt.relay)
	r.Handle("/*", rt.relay)
	r.NotFound(rt.relay.ServeHTTP)
	r.MethodNotAllowed(rt.relay.ServeHTTP)

	return r
}
