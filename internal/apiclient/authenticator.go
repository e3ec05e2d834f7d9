package apiclient

import (
	"context"
	"net/http"

	"recruitgate.org/internal/obs"
)

// Credentials is the session view the authenticator needs. *session.Context
// satisfies it.
type Credentials interface {
	CurrentToken() (string, bool)
	Revoke(ctx context.Context, token string) (bool, error)
}

// Authenticator attaches the session bearer token to outgoing requests and
// ends the session when the backend answers 401 for that token.
type Authenticator struct {
	creds Credentials
	next  http.RoundTripper
}

// NewAuthenticator wraps next; a nil next uses http.DefaultTransport.
func NewAuthenticator(creds Credentials, next http.RoundTripper) *Authenticator {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Authenticator{creds: creds, next: next}
}

// RoundTrip implements http.RoundTripper. The caller's request is never
// modified and requests are not retried.
func (a *Authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := a.creds.CurrentToken()
	out := req
	if ok {
		out = req.Clone(req.Context())
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && ok {
		// The caller may already be gone; the logout must still land.
		ctx := context.WithoutCancel(req.Context())
		revoked, rerr := a.creds.Revoke(ctx, token)
		entry := obs.Logger().WithField("path", req.URL.Path)
		switch {
		case rerr != nil:
			entry.WithError(rerr).Warn("revoke session after 401")
		case revoked:
			entry.Info("session revoked by backend 401")
		}
	}
	return resp, nil
}
