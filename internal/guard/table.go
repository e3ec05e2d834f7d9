package guard

import (
	"strings"

	"recruitgate.org/internal/auth"
)

// Route is one entry of the route table. Prefix routes also cover every
// path below Pattern.
type Route struct {
	Name        string
	Pattern     string
	Prefix      bool
	NotFound    bool
	Requirement Requirement
}

// Table is a static, declarative route tree.
type Table []Route

var notFound = Route{Name: "not-found", NotFound: true, Requirement: Public()}

// Match returns the exact route for path, else the longest matching prefix
// route, else the not-found route.
func (t Table) Match(path string) Route {
	path = cleanPath(path)
	var best Route
	found := false
	for _, r := range t {
		if r.Pattern == path {
			return r
		}
		if !r.Prefix || !strings.HasPrefix(path, strings.TrimSuffix(r.Pattern, "/")+"/") {
			continue
		}
		if !found || len(r.Pattern) > len(best.Pattern) {
			best, found = r, true
		}
	}
	if found {
		return best
	}
	return notFound
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// DefaultTable is the portal's route tree.
func DefaultTable() Table {
	public := func(name, pattern string) Route {
		return Route{Name: name, Pattern: pattern, Requirement: Public()}
	}
	dashboard := func(role auth.Role) Route {
		return Route{
			Name:        role.String(),
			Pattern:     LandingPath(role),
			Prefix:      true,
			Requirement: RequireRoles(role),
		}
	}
	return Table{
		public("index", "/"),
		public("login", LoginPath),
		public("logout", "/logout"),
		public("register", "/register"),
		public("session", "/session"),
		public("session-events", "/session/events"),
		public("healthz", "/healthz"),
		public("readyz", "/readyz"),
		public("metrics", "/metrics"),
		dashboard(auth.RoleAdmin),
		dashboard(auth.RoleRecruiter),
		dashboard(auth.RoleCandidate),
		dashboard(auth.RoleReviewer),
		dashboard(auth.RoleInterviewer),
	}
}
