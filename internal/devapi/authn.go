package devapi

import (
	"errors"
	"net/http"

	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/httpapi"
)

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := httpapi.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="recruitgate"`)
			writeMessage(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := s.issuer.Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			switch {
			case errors.Is(err, auth.ErrExpired):
				writeMessage(w, http.StatusUnauthorized, "token expired")
			default:
				writeMessage(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if role, err := auth.ParseRole(claims.Role); err != nil || role != auth.RoleAdmin {
			writeMessage(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
