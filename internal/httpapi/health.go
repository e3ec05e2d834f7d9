package httpapi

import (
	"context"
	"net/http"
	"time"
)

// Probe reports whether a dependency is usable.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Check(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// Healthz reports liveness.
func Healthz(service, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"service": service,
			"version": version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Readyz reports readiness by running probe.
func Readyz(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if probe != nil {
			if err := probe.Check(ctx); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"status": "ready",
		})
	}
}
