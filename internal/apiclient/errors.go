package apiclient

import (
	"fmt"
	"net/http"

	"recruitgate.org/internal/auth"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend: %d %s", e.Status, e.Message)
}

// Unwrap maps 401 onto auth.ErrUnauthorized so callers can match it with errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}

// NetworkError is a failure to reach the backend at all. It never changes
// session state.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return "backend " + e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }
