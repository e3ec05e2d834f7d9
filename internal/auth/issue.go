package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer   = "recruitgate"
	defaultTokenTTL = 4 * time.Hour
)

// Issuer signs HS256 tokens shaped like the recruitment backend's.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer) error

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("auth: issuer name is empty")
		}
		i.issuer = name
		return nil
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl <= 0 {
			return errors.New("auth: ttl must be greater than zero")
		}
		i.ttl = ttl
		return nil
	}
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// NewIssuer constructs an Issuer signing with secret.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	i := &Issuer{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Issue signs a token for subject. The role claim is upper-cased the way
// the backend emits it.
func (i *Issuer) Issue(subject string, role Role) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", time.Time{}, err
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := tokenClaims{
		Role: role.Wire(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of a token this issuer signed.
func (i *Issuer) Verify(token string) (Claims, error) {
	return NewDecoder(WithVerificationKey(string(i.secret)), WithClock(i.now)).Decode(token)
}
