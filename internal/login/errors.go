package login

import (
	"errors"
	"fmt"
	"strings"

	"recruitgate.org/internal/apiclient"
	"recruitgate.org/internal/auth"
)

// FieldError is one failed form rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s=%s", e.Field, e.Rule, e.Param)
	}
	return e.Field + ": " + e.Rule
}

// ValidationError lists every rule the submitted form broke.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Message is the text the login screen shows for err.
func Message(err error) string {
	var verr *ValidationError
	var netErr *apiclient.NetworkError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, auth.ErrInvalidRole):
		return "Invalid Role"
	case errors.Is(err, auth.ErrUnauthorized):
		return "Invalid username or password"
	case errors.As(err, &netErr):
		return "Service unavailable, please try again"
	case errors.Is(err, auth.ErrInvalidToken):
		return "Login failed: unreadable token"
	default:
		return "Login failed"
	}
}
