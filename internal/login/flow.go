// Package login drives the login and registration screens: it validates the
// form, talks to the backend and hands a verified token to the session.
package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"recruitgate.org/internal/apiclient"
	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/guard"
)

// ErrStale reports that the session changed or the caller went away while
// the backend was answering; the response is dropped.
var ErrStale = errors.New("login: response arrived for a stale request")

// Backend is the part of the REST client the flows use.
type Backend interface {
	Login(ctx context.Context, in apiclient.LoginRequest) (string, error)
	Register(ctx context.Context, in apiclient.Registration, image io.Reader, filename string) error
}

// Session is the part of session.Context the login flow drives.
type Session interface {
	Login(ctx context.Context, token, knownRole string) error
	Generation() uint64
}

// Credentials is the login form.
type Credentials struct {
	UserName string `json:"userName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up form.
type Registration struct {
	UserName     string `json:"userName" validate:"required"`
	UserEmail    string `json:"userEmail" validate:"required,email"`
	UserPassword string `json:"userPassword" validate:"required,min=6"`
	Role         string `json:"role" validate:"required,oneof=ADMIN NORMAL CANDIDATE RECRUITER INTERVIEWER HR"`
}

// Flow runs the login and registration screens.
type Flow struct {
	backend  Backend
	decoder  *auth.Decoder
	validate *validator.Validate
}

// NewFlow creates a Flow; a nil decoder reads tokens without verification.
func NewFlow(backend Backend, decoder *auth.Decoder) *Flow {
	if decoder == nil {
		decoder = auth.NewDecoder()
	}
	return &Flow{
		backend:  backend,
		decoder:  decoder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Login signs the user in and returns the dashboard to navigate to. Only
// roles that own a dashboard may log in here; any other token is discarded.
func (f *Flow) Login(ctx context.Context, sess Session, in Credentials) (string, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	if err := f.check(in); err != nil {
		return "", err
	}

	gen := sess.Generation()
	token, err := f.backend.Login(ctx, apiclient.LoginRequest{UserName: in.UserName, Password: in.Password})
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStale, err)
	}
	if sess.Generation() != gen {
		return "", ErrStale
	}

	claims, err := f.decoder.Decode(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", auth.ErrInvalidToken, err)
	}
	role, err := auth.ParseRole(claims.Role)
	if err != nil {
		return "", err
	}
	if !role.HasDashboard() {
		return "", fmt.Errorf("%w: %q has no dashboard", auth.ErrInvalidRole, role)
	}
	if err := sess.Login(ctx, token, claims.Role); err != nil {
		return "", err
	}
	return guard.LandingPath(role), nil
}

// Register validates the sign-up form and forwards it with the optional image.
func (f *Flow) Register(ctx context.Context, in Registration, image io.Reader, filename string) error {
	in.UserName = strings.TrimSpace(in.UserName)
	in.UserEmail = strings.TrimSpace(in.UserEmail)
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))
	if err := f.check(in); err != nil {
		return err
	}
	return f.backend.Register(ctx, apiclient.Registration{
		UserName:     in.UserName,
		UserEmail:    in.UserEmail,
		UserPassword: in.UserPassword,
		Role:         in.Role,
	}, image, filename)
}

func (f *Flow) check(v any) error {
	err := f.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: jsonName(fe.StructField()), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
