// Package guard decides, for every navigation, whether the current session
// may see a route or must be sent elsewhere.
package guard

import (
	"slices"

	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/session"
)

// State is the outcome of evaluating a session against a route requirement.
type State int

const (
	Unauthenticated State = iota
	AuthenticatedAuthorized
	AuthenticatedForbidden
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedAuthorized:
		return "authorized"
	case AuthenticatedForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Requirement describes who may open a route. An empty Roles list on a
// non-public route admits any authenticated role.
type Requirement struct {
	Public bool
	Roles  []auth.Role
}

// Public admits everyone, logged in or not.
func Public() Requirement { return Requirement{Public: true} }

// AnyRole admits any authenticated session.
func AnyRole() Requirement { return Requirement{} }

// RequireRoles admits sessions holding one of roles.
func RequireRoles(roles ...auth.Role) Requirement {
	return Requirement{Roles: slices.Clone(roles)}
}

// Allows reports whether role satisfies the requirement.
func (r Requirement) Allows(role auth.Role) bool {
	if r.Public || len(r.Roles) == 0 {
		return true
	}
	return slices.Contains(r.Roles, role)
}

// Evaluate classifies s against req. It depends only on its inputs.
func Evaluate(s session.State, req Requirement) State {
	if s.Token == "" {
		return Unauthenticated
	}
	if !req.Allows(s.Role) {
		return AuthenticatedForbidden
	}
	return AuthenticatedAuthorized
}

// LoginPath is where unauthenticated navigations land.
const LoginPath = "/login"

// LandingPath returns the dashboard root for role. Roles without a
// dashboard land on the public index.
func LandingPath(role auth.Role) string {
	switch role {
	case auth.RoleAdmin:
		return "/admin"
	case auth.RoleRecruiter:
		return "/recruiter"
	case auth.RoleCandidate:
		return "/candidate"
	case auth.RoleReviewer:
		return "/reviewer"
	case auth.RoleInterviewer:
		return "/interviewer"
	default:
		return "/"
	}
}

// Decision is what the portal does with one navigation. Exactly one of
// Render and Location is set.
type Decision struct {
	State    State
	Route    Route
	Render   bool
	Location string
}

// Guard checks navigations against a route table.
type Guard struct {
	table Table
}

// New creates a Guard over table.
func New(table Table) *Guard {
	return &Guard{table: table}
}

// Check evaluates s for path. The attempted destination is not kept when
// redirecting to login.
func (g *Guard) Check(s session.State, path string) Decision {
	route := g.table.Match(path)
	state := Evaluate(s, route.Requirement)
	d := Decision{State: state, Route: route}
	switch {
	case route.Requirement.Public, state == AuthenticatedAuthorized:
		d.Render = true
	case state == Unauthenticated:
		d.Location = LoginPath
	default:
		d.Location = LandingPath(s.Role)
	}
	return d
}
