package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the facts the portal reads from a bearer token. Role is
// lower-cased but not yet validated against the known set; see ParseRole.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// tokenClaims mirrors the backend's JWT payload.
type tokenClaims struct {
	Role  string   `json:"role"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Decoder turns opaque bearer tokens into Claims.
type Decoder struct {
	now    func() time.Time
	secret []byte
	parser *jwt.Parser
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithClock overrides the time source used for expiry checks.
func WithClock(fn func() time.Time) DecoderOption {
	return func(d *Decoder) {
		if fn != nil {
			d.now = fn
		}
	}
}

// WithVerificationKey enables HS256 signature verification. Without it the
// decoder only reads the payload, as a browser would.
func WithVerificationKey(secret string) DecoderOption {
	return func(d *Decoder) {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return
		}
		d.secret = []byte(secret)
	}
}

// NewDecoder builds a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	// Expiry is checked below against the injected clock.
	d.parser = jwt.NewParser(
		jwt.WithoutClaimsValidation(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	return d
}

// Decode extracts subject, role and expiry from token. Failures are
// *DecodeError values matching ErrMalformed or ErrExpired.
func (d *Decoder) Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, malformed(errors.New("empty token"))
	}

	var tc tokenClaims
	if len(d.secret) > 0 {
		if _, err := d.parser.ParseWithClaims(token, &tc, d.keyFunc); err != nil {
			return Claims{}, malformed(err)
		}
	} else {
		if _, _, err := d.parser.ParseUnverified(token, &tc); err != nil {
			return Claims{}, malformed(err)
		}
	}

	if tc.ExpiresAt == nil {
		return Claims{}, malformed(errors.New("exp claim missing"))
	}
	exp := tc.ExpiresAt.Time.UTC()
	if !d.now().Before(exp) {
		return Claims{}, expired(fmt.Errorf("expired at %s", exp.Format(time.RFC3339)))
	}

	role := tc.Role
	if strings.TrimSpace(role) == "" && len(tc.Roles) > 0 {
		role = tc.Roles[0]
	}
	role = normalizeRole(role)
	if role == "" {
		return Claims{}, malformed(errors.New("role claim missing"))
	}

	return Claims{
		Subject:   strings.TrimSpace(tc.Subject),
		Role:      role,
		ExpiresAt: exp,
	}, nil
}

func (d *Decoder) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return d.secret, nil
}
