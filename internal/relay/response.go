package relay

import (
	"encoding/json"
	"net/http"

	"github.com/netgeist/sttrelay/internal/cors"
)

type messageBody struct {
	Message string `json:"message"`
}

// respond is the single exit point for every relay response: it stamps the
// CORS origin for d, then writes status and body.
func (h *Handler) respond(w http.ResponseWriter, status int, contentType string, body []byte, d cors.Decision) {
	hdr := w.Header()
	h.policy.Apply(hdr, d)
	hdr.Add("Vary", "Origin")
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

func (h *Handler) respondText(w http.ResponseWriter, status int, msg string, d cors.Decision) {
	h.respond(w, status, "text/plain; charset=utf-8", []byte(msg), d)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body []byte, d cors.Decision) {
	h.respond(w, status, "application/json", body, d)
}

func (h *Handler) respondError(w http.ResponseWriter, e *Error, d cors.Decision) {
	h.metrics.ObserveRequest(e.Kind.String())
	if e.Plain {
		h.respondText(w, e.Status, e.Message, d)
		return
	}
	body, err := json.Marshal(messageBody{Message: e.Message})
	if err != nil {
		body = []byte(`{"message":"internal error"}`)
	}
	h.respondJSON(w, e.Status, body, d)
}
