package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"recruitgate.org/internal/apiclient"
	"recruitgate.org/internal/audit"
	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/guard"
	"recruitgate.org/internal/httpapi"
	"recruitgate.org/internal/login"
	"recruitgate.org/internal/obs"
)

const (
	maxImageBytes  = 5 << 20
	maxNoticeBytes = 200
)

func (p *Portal) index(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	state := sess.Snapshot()
	links := map[string]string{"login": guard.LoginPath, "register": "/register"}
	if state.Authenticated() {
		links = map[string]string{"dashboard": guard.LandingPath(state.Role), "logout": "/logout"}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"service":       p.service,
		"authenticated": state.Authenticated(),
		"role":          state.Role,
		"links":         links,
	})
}

// loginForm describes the login screen. An authenticated visitor is sent to
// their landing page; the session is left as it is.
func (p *Portal) loginForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if state := sess.Snapshot(); state.Authenticated() {
		http.Redirect(w, r, guard.LandingPath(state.Role), http.StatusFound)
		return
	}
	out := map[string]any{
		"form":     "login",
		"action":   guard.LoginPath,
		"fields":   []string{"userName", "password"},
		"register": "/register",
	}
	if reason := strings.TrimSpace(r.URL.Query().Get("reason")); reason != "" {
		if len(reason) > maxNoticeBytes {
			reason = reason[:maxNoticeBytes]
		}
		out["notice"] = reason
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (p *Portal) login(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())

	var creds login.Credentials
	if isJSON(r) {
		if err := httpapi.DecodeJSON(w, r, &creds); err != nil {
			httpapi.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpapi.WriteError(w, r, http.StatusBadRequest, "invalid form")
			return
		}
		creds = login.Credentials{UserName: r.PostFormValue("userName"), Password: r.PostFormValue("password")}
	}

	dest, err := p.flow.Login(r.Context(), sess, creds)
	if err != nil {
		obs.Logger().WithError(err).WithField("profile", sess.Profile()).Info("login rejected")
		httpapi.WriteError(w, r, flowStatus(err), login.Message(err))
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (p *Portal) logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if err := sess.Logout(r.Context()); err != nil {
		obs.Logger().WithError(err).WithField("profile", sess.Profile()).Error("logout")
		httpapi.WriteError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (p *Portal) registerForm(w http.ResponseWriter, r *http.Request) {
	roles := make([]string, 0, len(auth.RegistrationRoles()))
	for _, role := range auth.RegistrationRoles() {
		roles = append(roles, role.Wire())
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"form":   "register",
		"action": "/register",
		"fields": []string{"userName", "userEmail", "userPassword", "role", "image"},
		"roles":  roles,
	})
}

// register accepts the sign-up form either as a "user" JSON part or as
// flat fields, plus an optional "image" file.
func (p *Portal) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httpapi.WriteError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	var in login.Registration
	if raw := r.FormValue("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			httpapi.WriteError(w, r, http.StatusBadRequest, "user part must be JSON")
			return
		}
	} else {
		in.UserName = r.FormValue("userName")
		in.UserEmail = r.FormValue("userEmail")
		in.UserPassword = r.FormValue("userPassword")
	}
	if role := r.FormValue("role"); role != "" {
		in.Role = role
	}

	var (
		image    io.Reader
		filename string
	)
	if f, hdr, err := r.FormFile("image"); err == nil {
		defer f.Close()
		image, filename = f, hdr.Filename
	}

	if err := p.flow.Register(r.Context(), in, image, filename); err != nil {
		httpapi.WriteError(w, r, flowStatus(err), registerMessage(err))
		return
	}
	_ = audit.LogEvent(r.Context(), "portal.user.registered", map[string]any{
		"user": strings.TrimSpace(in.UserName),
		"role": strings.ToUpper(strings.TrimSpace(in.Role)),
	})
	httpapi.WriteJSON(w, http.StatusCreated, map[string]string{"status": "registered", "location": guard.LoginPath})
}

func (p *Portal) sessionState(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	state := sess.Snapshot()
	out := map[string]any{
		"authenticated": state.Authenticated(),
		"generation":    state.Generation,
	}
	if state.Authenticated() {
		out["role"] = state.Role
		out["subject"] = state.Subject
		out["expiresAt"] = state.ExpiresAt
		out["landing"] = guard.LandingPath(state.Role)
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (p *Portal) sessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	httpapi.StreamEvents(w, r, sess.Watch(r.Context()))
}

func (p *Portal) notFound(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteError(w, r, http.StatusNotFound, "page not found")
}

func flowStatus(err error) int {
	var (
		verr   *login.ValidationError
		netErr *apiclient.NetworkError
		apiErr *apiclient.APIError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, login.ErrStale):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidRole):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &netErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	default:
		return http.StatusBadGateway
	}
}

func registerMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status != http.StatusUnauthorized && apiErr.Message != "" {
		return apiErr.Message
	}
	return login.Message(err)
}

func acceptsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
