package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/obs"
	"recruitgate.org/internal/stream"
	"recruitgate.org/internal/tokenstore"
)

var ErrNoProfile = errors.New("session: profile id is required")

const defaultIdleTTL = 30 * time.Minute

// Registry hands out the Context for each browser profile, booting it from
// the token store on first use.
type Registry struct {
	backend tokenstore.Backend
	origin  string
	decoder *auth.Decoder
	events  *stream.Stream
	idleTTL time.Duration
	now     func() time.Time
	opts    []Option

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	sess     *Context
	ready    bool
	lastSeen time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL sets how long an unused Context stays in memory.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithEvents shares one event stream across all profiles.
func WithEvents(s *stream.Stream) RegistryOption {
	return func(r *Registry) {
		if s != nil {
			r.events = s
		}
	}
}

// WithRegistryClock overrides the time source used for idle tracking.
func WithRegistryClock(fn func() time.Time) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithSessionOptions applies opts to every Context the registry creates.
func WithSessionOptions(opts ...Option) RegistryOption {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

// NewRegistry creates a registry storing tokens in backend under origin.
func NewRegistry(backend tokenstore.Backend, origin string, decoder *auth.Decoder, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend: backend,
		origin:  origin,
		decoder: decoder,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.events == nil {
		r.events = stream.New()
	}
	return r
}

// Events returns the stream every Context publishes to.
func (r *Registry) Events() *stream.Stream { return r.events }

// Get returns the initialised Context for profile.
func (r *Registry) Get(ctx context.Context, profile string) (*Context, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return nil, ErrNoProfile
	}

	r.mu.Lock()
	e, ok := r.entries[profile]
	if !ok {
		store := tokenstore.Bind(r.backend, tokenstore.Key{Origin: r.origin, Profile: profile})
		opts := append([]Option{WithProfile(profile), WithStream(r.events)}, r.opts...)
		e = &entry{sess: New(store, r.decoder, opts...)}
		r.entries[profile] = e
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		if err := e.sess.Init(ctx); err != nil {
			return nil, err
		}
		e.ready = true
	}
	return e.sess, nil
}

// Len reports how many profiles are held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops contexts idle for longer than the TTL and returns how many
// were removed. Their tokens stay in the store.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle contexts until ctx ends.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				obs.Logger().WithField("evicted", n).Debug("session registry sweep")
			}
		}
	}
}
