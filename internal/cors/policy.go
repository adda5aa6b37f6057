// Package cors decides the Access-Control-Allow-Origin value for relay
// responses from a fixed origin allow-list.
package cors

import "net/http"

const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
)

// DefaultOrigin is echoed whenever the caller's origin is not allowed.
const DefaultOrigin = "https://netgeist.ai"

// AllowedOrigins are the front-ends permitted to POST audio.
var AllowedOrigins = []string{
	"http://localhost:3000",
	"http://172.16.2.11:3000",
	"https://netgeist.ai",
	"https://www.netgeist.ai",
	"https://nlp-website-git-dev-neurotechnology-nlps-projects.vercel.app",
}

// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	origins  map[string]bool
	fallback string
}

func NewPolicy(allowedOrigins []string, fallback string) *Policy {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}
	return &Policy{origins: originsSet, fallback: fallback}
}

// Default returns the compiled-in policy.
func Default() *Policy {
	return NewPolicy(AllowedOrigins, DefaultOrigin)
}

// Decision is the outcome of checking one request's Origin header.
type Decision struct {
	Origin  string
	Allowed bool
}

// Decide matches the request Origin exactly; an absent header is disallowed.
func (p *Policy) Decide(r *http.Request) Decision {
	origin := r.Header.Get("Origin")
	return Decision{Origin: origin, Allowed: origin != "" && p.origins[origin]}
}

// AllowOrigin is the header value to send for d.
func (p *Policy) AllowOrigin(d Decision) string {
	if d.Allowed {
		return d.Origin
	}
	return p.fallback
}

// Fallback returns the origin used for rejected callers.
func (p *Policy) Fallback() string {
	return p.fallback
}

// Apply sets Access-Control-Allow-Origin for d on h.
func (p *Policy) Apply(h http.Header, d Decision) {
	h.Set(HeaderAllowOrigin, p.AllowOrigin(d))
}
