// Package relay implements the browser-facing STT relay endpoint: it checks
// method and origin, resolves the uploaded audio, forwards it to the
// configured STT service and passes the JSON result back.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/netgeist/sttrelay/internal/audio"
	"github.com/netgeist/sttrelay/internal/cors"
	"github.com/netgeist/sttrelay/internal/metrics"
	"github.com/netgeist/sttrelay/internal/reqid"
	"github.com/netgeist/sttrelay/internal/stt"
)

// Config is the read-only input of a Handler.
type Config struct {
	STTURL          string
	STTToken        string
	UpstreamTimeout time.Duration
	FetchTimeout    time.Duration
	// Policy defaults to cors.Default().
	Policy *cors.Policy
}

type Handler struct {
	policy  *cors.Policy
	fetcher *audio.Fetcher
	stt     *stt.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func NewHandler(cfg Config, opts ...Option) *Handler {
	policy := cfg.Policy
	if policy == nil {
		policy = cors.Default()
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 60 * time.Second
	}

	h := &Handler{
		policy:  policy,
		fetcher: audio.NewFetcher(fetchTimeout),
		stt: stt.NewClient(stt.Config{
			Endpoint: cfg.STTURL,
			Token:    cfg.STTToken,
			Timeout:  cfg.UpstreamTimeout,
		}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Policy exposes the origin policy so surrounding middleware can label its
// own rejections consistently.
func (h *Handler) Policy() *cors.Policy {
	return h.policy
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d := h.policy.Decide(r)

	switch r.Method {
	case http.MethodOptions:
		h.preflight(w, d)
		return
	case http.MethodGet:
		h.health(w, d)
		return
	case http.MethodPost:
	default:
		h.respondError(w, errMethodNotAllowed, d)
		return
	}

	if !d.Allowed {
		h.logger.Debug("rejected origin", "origin", d.Origin, "request_id", reqid.FromContext(r.Context()))
		// d is disallowed, so the fallback origin is what gets sent.
		h.respondError(w, errUnauthorizedOrigin, d)
		return
	}

	result, rerr := h.relay(w, r)
	if rerr != nil {
		if rerr.Err != nil {
			h.logger.Warn("relay failed",
				"kind", rerr.Kind.String(),
				"status", rerr.Status,
				"error", rerr.Err,
				"request_id", reqid.FromContext(r.Context()),
			)
		}
		h.respondError(w, rerr, d)
		return
	}

	h.metrics.ObserveRequest("success")
	h.respondJSON(w, http.StatusOK, result, d)
}

func (h *Handler) preflight(w http.ResponseWriter, d cors.Decision) {
	w.Header().Set(cors.HeaderAllowMethods, "POST, OPTIONS")
	w.Header().Set(cors.HeaderAllowHeaders, "*")
	h.metrics.ObserveRequest("preflight")
	h.respond(w, http.StatusOK, "", nil, d)
}

func (h *Handler) health(w http.ResponseWriter, d cors.Decision) {
	if !h.stt.Configured() {
		h.metrics.ObserveRequest(KindConfigurationMissing.String())
		h.respondText(w, http.StatusInternalServerError, msgConfigMissing, d)
		return
	}
	h.metrics.ObserveRequest("health_ok")
	h.respondText(w, http.StatusOK, msgConfigOK, d)
}

// relay runs payload acquisition, validation and the upstream call.
func (h *Handler) relay(w http.ResponseWriter, r *http.Request) ([]byte, *Error) {
	ctx := r.Context()

	payload, perr := readPayload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if perr != nil {
		return nil, perr
	}

	data, rerr := h.resolve(ctx, payload)
	if rerr != nil {
		return nil, rerr
	}
	h.metrics.ObserveAudioBytes(len(data))

	if !h.stt.Configured() {
		return nil, errConfigMissing
	}

	start := time.Now()
	result, err := h.stt.Transcribe(ctx, data)
	elapsed := time.Since(start)

	var ue *stt.UpstreamError
	switch {
	case err == nil:
		h.metrics.ObserveUpstream(http.StatusOK, elapsed)
		return result, nil
	case errors.As(err, &ue):
		h.metrics.ObserveUpstream(ue.StatusCode, elapsed)
		return nil, &Error{Kind: KindUpstreamError, Status: ue.StatusCode, Message: ue.StatusText, Err: err}
	default:
		h.metrics.ObserveUpstream(0, elapsed)
		return nil, &Error{
			Kind:    KindInternalRelayFailure,
			Status:  http.StatusInternalServerError,
			Message: msgProcessingFailure,
			Err:     err,
		}
	}
}

func (h *Handler) resolve(ctx context.Context, p audio.Payload) ([]byte, *Error) {
	data, err := audio.Resolve(ctx, h.fetcher, p)
	if err == nil {
		if p.Kind == audio.KindURL {
			h.metrics.ObserveFetch("ok")
		}
		return data, nil
	}

	if p.Kind == audio.KindBlob {
		return nil, badRequest(msgUploadTooLarge, err)
	}

	var se *audio.StatusError
	switch {
	case errors.As(err, &se):
		h.metrics.ObserveFetch("status")
		return nil, badRequest(msgFetchFailed, err)
	case errors.Is(err, audio.ErrTooLarge):
		h.metrics.ObserveFetch("too_large")
		return nil, badRequest(msgFetchedTooLarge, err)
	default:
		h.metrics.ObserveFetch("error")
		return nil, badRequest(msgFetchError, err)
	}
}
