// Package reqid propagates the inbound request id onto outbound calls.
package reqid

import (
	"context"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const Header = "X-Request-ID"

// FromContext returns the chi request id, or a fresh UUID when none is set.
func FromContext(ctx context.Context) string {
	if id := chimiddleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// Set stamps req with the id carried by its context.
func Set(req *http.Request) {
	req.Header.Set(Header, FromContext(req.Context()))
}
