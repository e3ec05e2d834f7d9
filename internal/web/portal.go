// Package web is the portal: the HTTP face of the session gate. Every
// request is tied to a browser profile, checked by the route guard and only
// then handed to a screen handler.
package web

import (
	"context"
	"net/http"

	"recruitgate.org/internal/apiclient"
	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/guard"
	"recruitgate.org/internal/httpapi"
	"recruitgate.org/internal/login"
	"recruitgate.org/internal/obs"
	"recruitgate.org/internal/session"
)

const (
	defaultMaxBody   = 6 << 20
	defaultRateBurst = 40
	defaultRatePerS  = 20
)

// Portal serves the role-gated dashboards.
type Portal struct {
	mux      *http.ServeMux
	sessions *session.Registry
	client   *apiclient.Client
	flow     *login.Flow
	guard    *guard.Guard

	service      string
	version      string
	ready        httpapi.Probe
	cookieSecure bool
	maxBody      int64
	rateBurst    int
	ratePerS     float64
	trustProxy   bool
}

// Option configures a Portal.
type Option func(*Portal)

// WithVersion sets the service name and version reported by /healthz.
func WithVersion(service, version string) Option {
	return func(p *Portal) {
		p.service, p.version = service, version
	}
}

// WithReadiness sets the probe behind /readyz.
func WithReadiness(probe httpapi.Probe) Option {
	return func(p *Portal) { p.ready = probe }
}

// WithSecureCookie marks the profile cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(p *Portal) { p.cookieSecure = secure }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(p *Portal) {
		if n > 0 {
			p.maxBody = n
		}
	}
}

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(p *Portal) {
		if burst > 0 && perSecond > 0 {
			p.rateBurst, p.ratePerS = burst, perSecond
		}
	}
}

// WithTrustedProxy keys rate limiting by X-Forwarded-For instead of the
// peer address.
func WithTrustedProxy(trust bool) Option {
	return func(p *Portal) { p.trustProxy = trust }
}

// WithTable replaces the default route table.
func WithTable(t guard.Table) Option {
	return func(p *Portal) { p.guard = guard.New(t) }
}

// New builds the portal. client talks to the backend without credentials;
// per-session clients are derived from it on each request.
func New(sessions *session.Registry, client *apiclient.Client, decoder *auth.Decoder, opts ...Option) *Portal {
	p := &Portal{
		mux:       http.NewServeMux(),
		sessions:  sessions,
		client:    client,
		flow:      login.NewFlow(client, decoder),
		guard:     guard.New(guard.DefaultTable()),
		service:   "recruitgate-portal",
		maxBody:   defaultMaxBody,
		rateBurst: defaultRateBurst,
		ratePerS:  defaultRatePerS,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.mux.HandleFunc("GET /{$}", p.index)
	p.mux.HandleFunc("GET /login", p.loginForm)
	p.mux.HandleFunc("POST /login", p.login)
	p.mux.HandleFunc("GET /logout", p.logout)
	p.mux.HandleFunc("POST /logout", p.logout)
	p.mux.HandleFunc("GET /register", p.registerForm)
	p.mux.HandleFunc("POST /register", p.register)
	p.mux.HandleFunc("GET /session", p.sessionState)
	p.mux.HandleFunc("GET /session/events", p.sessionEvents)
	for role := range dashboards {
		landing := guard.LandingPath(role)
		p.mux.HandleFunc("GET "+landing, p.dashboard(role))
		p.mux.HandleFunc("GET "+landing+"/{resource}", p.listing(role))
	}
	p.mux.HandleFunc("/", p.notFound)
	return p
}

// Handler returns the full middleware chain. ctx bounds background work
// such as the rate limiter janitor.
func (p *Portal) Handler(ctx context.Context) http.Handler {
	root := http.NewServeMux()
	root.Handle("GET /healthz", httpapi.Healthz(p.service, p.version))
	root.Handle("GET /readyz", httpapi.Readyz(p.ready))
	root.Handle("GET /metrics", obs.Handler())
	root.Handle("/", p.withProfile(p.guard.Middleware(p.resolve)(p.mux)))

	var h http.Handler = root
	h = obs.Instrument(h)
	h = httpapi.RateLimit(ctx, h, p.rateBurst, p.ratePerS, httpapi.TrustForwardedFor(p.trustProxy))
	h = httpapi.MaxBodyBytes(h, p.maxBody)
	h = httpapi.SecurityHeaders(h)
	h = httpapi.LoggingJSON(h)
	h = httpapi.RequestID(h)
	return h
}
