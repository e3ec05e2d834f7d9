package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signMap(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestDecodeNormalizesRole(t *testing.T) {
	token := signMap(t, jwt.MapClaims{
		"sub":  "jane",
		"role": "ADMIN",
		"exp":  fixedNow.Add(time.Hour).Unix(),
	})
	claims, err := NewDecoder(WithClock(func() time.Time { return fixedNow })).Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Role != "admin" {
		t.Fatalf("expected lower-cased role, got %q", claims.Role)
	}
	if claims.Subject != "jane" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if !claims.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt)
	}
}

func TestDecodeFallsBackToRolesArray(t *testing.T) {
	token := signMap(t, jwt.MapClaims{
		"sub":   "rec-1",
		"roles": []string{"Recruiter", "hr"},
		"exp":   fixedNow.Add(time.Minute).Unix(),
	})
	claims, err := NewDecoder(WithClock(func() time.Time { return fixedNow })).Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Role != "recruiter" {
		t.Fatalf("unexpected role %q", claims.Role)
	}
}

func TestDecodeFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMalformed},
		{name: "whitespace", token: "   ", want: ErrMalformed},
		{name: "not a jwt", token: "definitely-not-a-token", want: ErrMalformed},
		{name: "three garbage segments", token: "a.b.c", want: ErrMalformed},
		{name: "payload not json", token: "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.c2ln", want: ErrMalformed},
		{
			name:  "missing exp",
			token: signMap(t, jwt.MapClaims{"sub": "x", "role": "admin"}),
			want:  ErrMalformed,
		},
		{
			name:  "exp wrong type",
			token: signMap(t, jwt.MapClaims{"sub": "x", "role": "admin", "exp": "tomorrow"}),
			want:  ErrMalformed,
		},
		{
			name:  "missing role",
			token: signMap(t, jwt.MapClaims{"sub": "x", "exp": fixedNow.Add(time.Hour).Unix()}),
			want:  ErrMalformed,
		},
		{
			name:  "expired",
			token: signMap(t, jwt.MapClaims{"sub": "x", "role": "admin", "exp": fixedNow.Add(-time.Minute).Unix()}),
			want:  ErrExpired,
		},
		{
			name:  "expires exactly now",
			token: signMap(t, jwt.MapClaims{"sub": "x", "role": "admin", "exp": fixedNow.Unix()}),
			want:  ErrExpired,
		},
	}

	dec := NewDecoder(WithClock(func() time.Time { return fixedNow }))
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			claims, err := dec.Decode(tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Decode() err = %v, want %v", err, tc.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if claims.Role != "" {
				t.Fatalf("failed decode must not return a role, got %q", claims.Role)
			}
		})
	}
}

func TestDecodeWithVerificationKey(t *testing.T) {
	token := signMap(t, jwt.MapClaims{"sub": "x", "role": "candidate", "exp": fixedNow.Add(time.Hour).Unix()})
	now := func() time.Time { return fixedNow }

	if _, err := NewDecoder(WithClock(now), WithVerificationKey("test-secret")).Decode(token); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	_, err := NewDecoder(WithClock(now), WithVerificationKey("other-secret")).Decode(token)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed on bad signature, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	for _, raw := range []string{"ADMIN", " Recruiter ", "hr", "Normal", "INTERVIEWER"} {
		if _, err := ParseRole(raw); err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
	}
	if _, err := ParseRole("superuser"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if RoleHR.HasDashboard() || RoleNormal.HasDashboard() {
		t.Fatal("hr and normal have no dashboard")
	}
	if !RoleReviewer.HasDashboard() {
		t.Fatal("reviewer owns a dashboard")
	}
	if RoleCandidate.Wire() != "CANDIDATE" {
		t.Fatalf("unexpected wire form %q", RoleCandidate.Wire())
	}
}

func TestIssuerRoundTrip(t *testing.T) {
	now := func() time.Time { return fixedNow }
	iss, err := NewIssuer("test-secret", WithTokenTTL(30*time.Minute), WithIssuerClock(now))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, expiresAt, err := iss.Issue("user-42", RoleInterviewer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(fixedNow.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}
	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-42" || claims.Role != "interviewer" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, _, err := iss.Issue("user-42", Role("superuser")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := NewIssuer(" "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := SubjectFromContext(ctx); ok {
		t.Fatal("empty context must not carry a subject")
	}
	ctx = ContextWithClaims(ctx, Claims{Subject: "user-7", Role: "admin"})
	if sub, ok := SubjectFromContext(ctx); !ok || sub != "user-7" {
		t.Fatalf("unexpected subject %q ok=%v", sub, ok)
	}
}
