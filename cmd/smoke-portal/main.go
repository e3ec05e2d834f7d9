package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"recruitgate.org/internal/httpapi"
)

func main() {
	base := strings.TrimRight(envOr("RECRUITGATE_PORTAL_URL", "http://localhost:8080"), "/")
	user := envOr("RECRUITGATE_SEED_USER", "admin")
	password := os.Getenv("RECRUITGATE_SEED_PASSWORD")
	if password == "" {
		log.Fatal("RECRUITGATE_SEED_PASSWORD is required")
	}

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expect := func(method, path string, body url.Values, code int, location string) {
		var req *http.Request
		var err error
		if body != nil {
			req, err = http.NewRequestWithContext(ctx, method, base+path, strings.NewReader(body.Encode()))
			if err == nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		} else {
			req, err = http.NewRequestWithContext(ctx, method, base+path, nil)
		}
		if err != nil {
			log.Fatalf("%s %s: %v", method, path, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("%s %s: %v", method, path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != code {
			log.Fatalf("%s %s: expected %d, got %d", method, path, code, resp.StatusCode)
		}
		if location != "" && resp.Header.Get("Location") != location {
			log.Fatalf("%s %s: expected redirect to %s, got %q", method, path, location, resp.Header.Get("Location"))
		}
	}

	expect(http.MethodGet, "/healthz", nil, http.StatusOK, "")

	grpcAddr := envOr("RECRUITGATE_PORTAL_GRPC_ADDR", "localhost:9090")
	health, err := httpapi.DialHealth(grpcAddr)
	if err != nil {
		log.Fatalf("dial grpc health at %s: %v", grpcAddr, err)
	}
	defer health.Close()
	if ok, err := health.Serving(ctx, "recruitgate.portal"); err != nil || !ok {
		log.Fatalf("grpc health: serving=%v err=%v", ok, err)
	}
	expect(http.MethodGet, "/admin", nil, http.StatusFound, "/login")

	form := url.Values{"userName": {user}, "password": {password}}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, base+"/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	landing := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusSeeOther || landing == "" {
		log.Fatalf("login: expected 303 to a dashboard, got %d", resp.StatusCode)
	}

	expect(http.MethodGet, landing, nil, http.StatusOK, "")

	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, base+"/session", nil)
	resp, err = client.Do(req)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	var state struct {
		Authenticated bool   `json:"authenticated"`
		Role          string `json:"role"`
	}
	err = json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if err != nil || !state.Authenticated {
		log.Fatalf("session: expected authenticated state, got %+v (%v)", state, err)
	}

	expect(http.MethodPost, "/logout", url.Values{}, http.StatusSeeOther, "/login")
	expect(http.MethodGet, landing, nil, http.StatusFound, "/login")

	fmt.Printf("portal smoke test passed: user=%s role=%s landing=%s\n", user, state.Role, landing)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
