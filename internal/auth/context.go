package auth

import "context"

type claimsContextKey struct{}

// ContextWithClaims attaches verified claims to the context.
func ContextWithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, &claims)
}

// ClaimsFromContext extracts claims stored by ContextWithClaims.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	if ctx == nil {
		return Claims{}, false
	}
	v, ok := ctx.Value(claimsContextKey{}).(*Claims)
	if !ok || v == nil {
		return Claims{}, false
	}
	return *v, true
}

// SubjectFromContext returns the claims subject when present.
func SubjectFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
