package guard

import (
	"context"
	"net/http"

	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/obs"
	"recruitgate.org/internal/session"
)

// Resolver yields the session state for an incoming request.
type Resolver func(r *http.Request) (session.State, error)

type decisionContextKey struct{}

// DecisionFromContext returns the decision the middleware made for this request.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(Decision)
	return d, ok
}

// Middleware evaluates the guard on every request and redirects with 302
// when the route may not render. Rendered requests carry the decision and,
// when logged in, the session claims in their context.
func (g *Guard) Middleware(resolve Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, err := resolve(r)
			if err != nil {
				obs.Logger().WithError(err).WithField("path", r.URL.Path).Error("resolve session")
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}

			d := g.Check(state, r.URL.Path)
			obs.ObserveGuardDecision(d.State.String())
			if !d.Render {
				http.Redirect(w, r, d.Location, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			if state.Authenticated() {
				ctx = auth.ContextWithClaims(ctx, auth.Claims{
					Subject:   state.Subject,
					Role:      state.Role.String(),
					ExpiresAt: state.ExpiresAt,
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
