package auth

import "errors"

var (
	ErrMalformed    = errors.New("auth: malformed token")
	ErrExpired      = errors.New("auth: token expired")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrUnauthorized = errors.New("auth: unauthorized")
)

// DecodeError reports why a bearer token could not be turned into Claims.
// Kind is ErrMalformed or ErrExpired.
type DecodeError struct {
	Kind error
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(err error) error {
	return &DecodeError{Kind: ErrMalformed, Err: err}
}

func expired(err error) error {
	return &DecodeError{Kind: ErrExpired, Err: err}
}
