package web

import (
	"context"
	"errors"
	"net/http"

	"recruitgate.org/internal/httpapi"
	"recruitgate.org/internal/ids"
	"recruitgate.org/internal/obs"
	"recruitgate.org/internal/session"
)

// ProfileCookie identifies the browser profile a session belongs to.
const ProfileCookie = "rg_profile"

const profileCookieMaxAge = 365 * 24 * 60 * 60

var errNoSession = errors.New("web: request carries no session")

type sessionContextKey struct{}

func sessionFrom(ctx context.Context) (*session.Context, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*session.Context)
	return s, ok
}

// withProfile attaches the profile's session to the request, issuing a
// fresh profile cookie when the browser has none.
func (p *Portal) withProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := ""
		if c, err := r.Cookie(ProfileCookie); err == nil && ids.Valid(c.Value) {
			profile = c.Value
		}
		if profile == "" {
			profile = ids.New()
			http.SetCookie(w, &http.Cookie{
				Name:     ProfileCookie,
				Value:    profile,
				Path:     "/",
				MaxAge:   profileCookieMaxAge,
				HttpOnly: true,
				Secure:   p.cookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		sess, err := p.sessions.Get(r.Context(), profile)
		if err != nil {
			obs.Logger().WithError(err).WithField("profile", profile).Error("load session")
			httpapi.WriteError(w, r, http.StatusServiceUnavailable, "session unavailable")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (p *Portal) resolve(r *http.Request) (session.State, error) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		return session.State{}, errNoSession
	}
	return sess.Snapshot(), nil
}
