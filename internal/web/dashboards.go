package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"recruitgate.org/internal/apiclient"
	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/guard"
	"recruitgate.org/internal/httpapi"
	"recruitgate.org/internal/obs"
)

// dashboards lists the collections each role's dashboard shows.
var dashboards = map[auth.Role][]string{
	auth.RoleAdmin:       {"users", "degrees", "skills"},
	auth.RoleRecruiter:   {"candidates", "applications", "interviews"},
	auth.RoleCandidate:   {"applications"},
	auth.RoleReviewer:    {"applications"},
	auth.RoleInterviewer: {"interviews"},
}

type lister func(ctx context.Context, c *apiclient.Client) (any, error)

func listOf[T any](res func(*apiclient.Client) apiclient.Resource[T]) lister {
	return func(ctx context.Context, c *apiclient.Client) (any, error) {
		items, err := res(c).List(ctx)
		if items == nil {
			items = []T{}
		}
		return items, err
	}
}

var listers = map[string]lister{
	"users":        listOf((*apiclient.Client).Users),
	"degrees":      listOf((*apiclient.Client).Degrees),
	"skills":       listOf((*apiclient.Client).Skills),
	"candidates":   listOf((*apiclient.Client).Candidates),
	"applications": listOf((*apiclient.Client).Applications),
	"interviews":   listOf((*apiclient.Client).Interviews),
}

func (p *Portal) dashboard(role auth.Role) http.HandlerFunc {
	landing := guard.LandingPath(role)
	return func(w http.ResponseWriter, r *http.Request) {
		resources := make([]map[string]string, 0, len(dashboards[role]))
		for _, name := range dashboards[role] {
			resources = append(resources, map[string]string{"name": name, "href": landing + "/" + name})
		}
		subject, _ := auth.SubjectFromContext(r.Context())
		httpapi.WriteJSON(w, http.StatusOK, map[string]any{
			"dashboard": role,
			"subject":   subject,
			"resources": resources,
		})
	}
}

func (p *Portal) listing(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("resource")
		list, ok := listers[name]
		if !ok || !slices.Contains(dashboards[role], name) {
			p.notFound(w, r)
			return
		}
		sess, _ := sessionFrom(r.Context())
		items, err := list(r.Context(), p.client.ForSession(sess))
		if err != nil {
			p.backendError(w, r, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, map[string]any{"resource": name, "items": items})
	}
}

// backendError renders a failed backend call. A 401 has already ended the
// session by the time it gets here: JSON clients get the backend's message
// with a 401, browsers are sent to login with it as the reason.
func (p *Portal) backendError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apiErr *apiclient.APIError
		netErr *apiclient.NetworkError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		reason := "session ended"
		if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
			reason = strings.TrimSpace(apiErr.Message)
		}
		if acceptsJSON(r) {
			httpapi.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error":      reason,
				"location":   guard.LoginPath,
				"request_id": httpapi.RequestIDFromContext(r.Context()),
			})
			return
		}
		http.Redirect(w, r, guard.LoginPath+"?"+url.Values{"reason": {reason}}.Encode(), http.StatusFound)
	case errors.As(err, &netErr):
		obs.Logger().WithError(err).Warn("backend unreachable")
		httpapi.WriteError(w, r, http.StatusServiceUnavailable, "backend unavailable")
	case errors.As(err, &apiErr) && (apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound):
		httpapi.WriteError(w, r, apiErr.Status, apiErr.Message)
	default:
		obs.Logger().WithError(err).Warn("backend request failed")
		httpapi.WriteError(w, r, http.StatusBadGateway, "backend request failed")
	}
}
