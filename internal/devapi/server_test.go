package devapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"recruitgate.org/internal/apiclient"
	"recruitgate.org/internal/auth"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, now func() time.Time) (*Server, *httptest.Server) {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", auth.WithIssuerClock(now), auth.WithTokenTTL(time.Hour))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	s := New(issuer, WithBcryptCost(bcrypt.MinCost))
	if err := s.Seed("root", "root@example.com", "secret1", auth.RoleAdmin); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestLoginIssuesUpperCaseRoleToken(t *testing.T) {
	_, srv := newTestServer(t, time.Now)
	client, _ := apiclient.New(srv.URL)

	token, err := client.Login(context.Background(), apiclient.LoginRequest{UserName: "root", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := auth.NewDecoder().Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "root" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	var raw struct {
		Role string `json:"role"`
	}
	parts := bytes.Split([]byte(token), []byte("."))
	payload, err := base64.RawURLEncoding.DecodeString(string(parts[1]))
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if err := json.Unmarshal(payload, &raw); err != nil || raw.Role != "ADMIN" {
		t.Fatalf("expected wire role ADMIN, got %q err=%v", raw.Role, err)
	}

	if _, err := client.Login(context.Background(), apiclient.LoginRequest{UserName: "root", Password: "wrong"}); err == nil {
		t.Fatal("expected bad credentials")
	}
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	_, srv := newTestServer(t, time.Now)

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"scheme", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/skills", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
			if resp.Header.Get("WWW-Authenticate") == "" {
				t.Fatal("expected WWW-Authenticate header")
			}
		})
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	var offset atomic.Int64
	_, srv := newTestServer(t, func() time.Time { return fixedNow.Add(time.Duration(offset.Load())) })
	client, _ := apiclient.New(srv.URL)
	token, err := client.Login(context.Background(), apiclient.LoginRequest{UserName: "root", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	offset.Store(int64(2 * time.Hour))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusUnauthorized || body["message"] != "token expired" {
		t.Fatalf("expected expired 401, got %d %v", resp.StatusCode, body)
	}
}

type staticCreds string

func (s staticCreds) CurrentToken() (string, bool)                 { return string(s), s != "" }
func (s staticCreds) Revoke(context.Context, string) (bool, error) { return false, nil }

func TestCRUDThroughClient(t *testing.T) {
	_, srv := newTestServer(t, time.Now)
	ctx := context.Background()
	client, _ := apiclient.New(srv.URL)
	token, err := client.Login(ctx, apiclient.LoginRequest{UserName: "root", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	authed := client.ForSession(staticCreds(token))

	created, err := authed.Degrees().Create(ctx, apiclient.Degree{Name: "BSc"})
	if err != nil || created.ID != 1 {
		t.Fatalf("Create: %+v %v", created, err)
	}
	if _, err := authed.Degrees().Update(ctx, "1", apiclient.Degree{Name: "MSc"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := authed.Degrees().Get(ctx, "1")
	if err != nil || got.Name != "MSc" {
		t.Fatalf("Get: %+v %v", got, err)
	}
	if err := authed.Degrees().Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := authed.Degrees().Get(ctx, "1"); err == nil {
		t.Fatal("expected 404 after delete")
	}

	users, err := authed.Users().List(ctx)
	if err != nil || len(users) != 1 || users[0].Role != "ADMIN" {
		t.Fatalf("List users: %+v %v", users, err)
	}
}

func TestRegister(t *testing.T) {
	_, srv := newTestServer(t, time.Now)
	ctx := context.Background()
	client, _ := apiclient.New(srv.URL)

	reg := apiclient.Registration{UserName: "cand", UserEmail: "cand@example.com", UserPassword: "secret1", Role: "CANDIDATE"}
	if err := client.Register(ctx, reg, bytes.NewReader([]byte("img")), "me.png"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := client.Register(ctx, reg, nil, "")
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %v", err)
	}

	token, err := client.Login(ctx, apiclient.LoginRequest{UserName: "cand", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login new user: %v", err)
	}
	claims, _ := auth.NewDecoder().Decode(token)
	if claims.Role != "candidate" {
		t.Fatalf("unexpected role %q", claims.Role)
	}

	reviewer := apiclient.Registration{UserName: "rev", UserEmail: "rev@example.com", UserPassword: "secret1", Role: "REVIEWER"}
	if err := client.Register(ctx, reviewer, nil, ""); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected reviewer sign-up rejected, got %v", err)
	}
}

func TestRegisterRejectsBadForm(t *testing.T) {
	_, srv := newTestServer(t, time.Now)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("user", `{"userName":"x","userEmail":"nope","userPassword":"1"}`)
	_ = mw.WriteField("role", "HR")
	_ = mw.Close()

	resp, err := srv.Client().Post(srv.URL+"/authentication/register", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDeleteUserRequiresAdmin(t *testing.T) {
	s, srv := newTestServer(t, time.Now)
	ctx := context.Background()
	if err := s.Seed("rec", "rec@example.com", "secret1", auth.RoleRecruiter); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	client, _ := apiclient.New(srv.URL)
	token, err := client.Login(ctx, apiclient.LoginRequest{UserName: "rec", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	err = client.ForSession(staticCreds(token)).Users().Delete(ctx, "1")
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
