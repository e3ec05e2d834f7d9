// Package session holds the single authoritative answer to "is this browser
// profile logged in, and as which role". Every transition goes through a
// Context; the token store only ever sees what the Context writes.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"recruitgate.org/internal/audit"
	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/obs"
	"recruitgate.org/internal/stream"
	"recruitgate.org/internal/tokenstore"
)

// Transition kinds reported in events and metrics.
const (
	KindRestore = "restore"
	KindLogin   = "login"
	KindLogout  = "logout"
	KindRevoke  = "revoke"
	KindExpire  = "expire"
)

// State is a point-in-time copy of the session. Role is non-empty exactly
// when Token is.
type State struct {
	Token      string
	Role       auth.Role
	Subject    string
	ExpiresAt  time.Time
	Generation uint64
}

// Authenticated reports whether the snapshot carries a token.
func (s State) Authenticated() bool { return s.Token != "" }

// Context owns the session of one browser profile.
type Context struct {
	mu      sync.Mutex
	store   tokenstore.Store
	decoder *auth.Decoder
	events  *stream.Stream
	profile string
	now     func() time.Time
	state   State
}

// Option configures a Context.
type Option func(*Context)

// WithProfile labels events and logs with the owning profile id.
func WithProfile(id string) Option {
	return func(c *Context) { c.profile = strings.TrimSpace(id) }
}

// WithStream publishes transitions to s instead of a private stream.
func WithStream(s *stream.Stream) Option {
	return func(c *Context) {
		if s != nil {
			c.events = s
		}
	}
}

// WithClock overrides the time source used for lazy expiry.
func WithClock(fn func() time.Time) Option {
	return func(c *Context) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New builds a logged-out Context. Call Init to restore a persisted token.
func New(store tokenstore.Store, decoder *auth.Decoder, opts ...Option) *Context {
	if decoder == nil {
		decoder = auth.NewDecoder()
	}
	c := &Context{
		store:   store,
		decoder: decoder,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = stream.New()
	}
	return c
}

// Init restores the session from the store. A stored token that no longer
// decodes to a known role is cleared and the session stays logged out; a
// failed clear is only logged, the next Login overwrites the row.
func (c *Context) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, ok, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("session: read token: %w", err)
	}
	if !ok || token == "" {
		return nil
	}
	claims, role, err := c.decode(token)
	if err != nil {
		c.log().WithError(err).Info("discarding stored token")
		if err := c.store.Clear(ctx); err != nil {
			c.log().WithError(err).Warn("clear discarded token")
		}
		return nil
	}
	c.apply(ctx, authenticated(token, role, claims), KindRestore)
	return nil
}

// Login installs token as the session credential. knownRole, when set, must
// agree with the role carried by the token. On any error the previous
// session is left as it was.
func (c *Context) Login(ctx context.Context, token, knownRole string) error {
	token = strings.TrimSpace(token)
	claims, role, err := c.decode(token)
	if err != nil {
		return err
	}
	if strings.TrimSpace(knownRole) != "" {
		known, err := auth.ParseRole(knownRole)
		if err != nil || known != role {
			return fmt.Errorf("%w: role %q does not match token role %q", auth.ErrInvalidToken, knownRole, role)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Set(ctx, token); err != nil {
		return fmt.Errorf("session: persist token: %w", err)
	}
	c.apply(ctx, authenticated(token, role, claims), KindLogin)
	return nil
}

// Logout clears the session. Calling it while logged out is a no-op apart
// from clearing the store again.
func (c *Context) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked(ctx, KindLogout)
}

// Revoke logs out only if token is still the current credential and reports
// whether this call ended the session.
func (c *Context) Revoke(ctx context.Context, token string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" || c.state.Token != token {
		return false, nil
	}
	return true, c.clearLocked(ctx, KindRevoke)
}

// CurrentToken returns the bearer token, if any.
func (c *Context) CurrentToken() (string, bool) {
	s := c.Snapshot()
	return s.Token, s.Authenticated()
}

// CurrentRole returns the role of the logged-in user, if any.
func (c *Context) CurrentRole() (auth.Role, bool) {
	s := c.Snapshot()
	return s.Role, s.Authenticated()
}

// Snapshot returns the current state, first dropping a token that expired
// since it was installed.
func (c *Context) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Token != "" && !c.now().Before(c.state.ExpiresAt) {
		if err := c.clearLocked(context.Background(), KindExpire); err != nil {
			c.log().WithError(err).Warn("clear expired token")
		}
	}
	return c.state
}

// Generation increments on every transition; callers compare it to detect
// that the session changed underneath them.
func (c *Context) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Generation
}

// Profile returns the owning profile id.
func (c *Context) Profile() string { return c.profile }

// Watch streams transitions until ctx ends.
func (c *Context) Watch(ctx context.Context) <-chan stream.SessionEvent {
	return c.events.Subscribe(ctx, c.profile)
}

func (c *Context) decode(token string) (auth.Claims, auth.Role, error) {
	claims, err := c.decoder.Decode(token)
	if err != nil {
		return auth.Claims{}, "", fmt.Errorf("%w: %w", auth.ErrInvalidToken, err)
	}
	role, err := auth.ParseRole(claims.Role)
	if err != nil {
		return auth.Claims{}, "", err
	}
	return claims, role, nil
}

// clearLocked drops the in-memory session before touching the store so a
// failing store never leaves a stale credential in use.
func (c *Context) clearLocked(ctx context.Context, kind string) error {
	wasAuthenticated := c.state.Token != ""
	if wasAuthenticated {
		c.apply(ctx, State{}, kind)
	}
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear token: %w", err)
	}
	return nil
}

func (c *Context) apply(ctx context.Context, next State, kind string) {
	prev := c.state
	next.Generation = prev.Generation + 1
	c.state = next

	obs.ObserveSessionTransition(kind)
	c.events.Publish(stream.SessionEvent{
		Profile:       c.profile,
		Kind:          kind,
		Authenticated: next.Authenticated(),
		Role:          next.Role.String(),
		Generation:    next.Generation,
	})

	subject := next.Subject
	if subject == "" {
		subject = prev.Subject
	}
	if subject != "" {
		ctx = auth.ContextWithClaims(ctx, auth.Claims{Subject: subject})
	}
	_ = audit.LogEvent(ctx, "session."+kind, map[string]any{
		"profile":    c.profile,
		"role":       string(next.Role),
		"generation": next.Generation,
	})
}

func (c *Context) log() *logrus.Entry {
	return obs.Logger().WithField("profile", c.profile)
}

func authenticated(token string, role auth.Role, claims auth.Claims) State {
	return State{
		Token:     token,
		Role:      role,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt,
	}
}
