package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of identities a session can hold.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleRecruiter   Role = "recruiter"
	RoleCandidate   Role = "candidate"
	RoleReviewer    Role = "reviewer"
	RoleInterviewer Role = "interviewer"
	RoleHR          Role = "hr"
	RoleNormal      Role = "normal"
)

var knownRoles = []Role{
	RoleAdmin,
	RoleRecruiter,
	RoleCandidate,
	RoleReviewer,
	RoleInterviewer,
	RoleHR,
	RoleNormal,
}

// dashboardRoles are the roles the login screen can route to.
var dashboardRoles = map[Role]struct{}{
	RoleAdmin:       {},
	RoleRecruiter:   {},
	RoleCandidate:   {},
	RoleReviewer:    {},
	RoleInterviewer: {},
}

// registrationRoles are the values the backend accepts on sign-up.
var registrationRoles = []Role{
	RoleAdmin,
	RoleNormal,
	RoleCandidate,
	RoleRecruiter,
	RoleInterviewer,
	RoleHR,
}

// ParseRole normalizes raw and validates it against the known set.
func ParseRole(raw string) (Role, error) {
	normalized := Role(normalizeRole(raw))
	for _, r := range knownRoles {
		if r == normalized {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// Roles returns every known role.
func Roles() []Role {
	out := make([]Role, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// RegistrationRoles returns the roles a new account may be created with.
func RegistrationRoles() []Role {
	out := make([]Role, len(registrationRoles))
	copy(out, registrationRoles)
	return out
}

func (r Role) String() string { return string(r) }

// Wire returns the upper-case form used by the backend.
func (r Role) Wire() string { return strings.ToUpper(string(r)) }

// HasDashboard reports whether the role owns a dashboard.
func (r Role) HasDashboard() bool {
	_, ok := dashboardRoles[r]
	return ok
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
