package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/session"
	"recruitgate.org/internal/tokenstore"
)

type stubCreds struct {
	mu      sync.Mutex
	token   string
	revoked []string
}

func (s *stubCreds) CurrentToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *stubCreds) Revoke(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = append(s.revoked, token)
	if token != s.token {
		return false, nil
	}
	s.token = ""
	return true, nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func respond(code int) roundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header), Request: r}, nil
	}
}

func TestAuthenticatorAttachesBearerWithoutMutatingRequest(t *testing.T) {
	creds := &stubCreds{token: "tok-1"}
	var sent string
	rt := NewAuthenticator(creds, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sent = r.Header.Get("Authorization")
		return respond(http.StatusOK)(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://backend.test/users", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if sent != "Bearer tok-1" {
		t.Fatalf("unexpected Authorization %q", sent)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("caller request mutated: %q", got)
	}
}

func TestAuthenticatorSendsNoHeaderWhenLoggedOut(t *testing.T) {
	creds := &stubCreds{}
	rt := NewAuthenticator(creds, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		return respond(http.StatusUnauthorized)(r)
	}))
	resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend.test/users", nil))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected result %v %v", resp, err)
	}
	if len(creds.revoked) != 0 {
		t.Fatalf("no token was sent, nothing to revoke: %v", creds.revoked)
	}
}

func TestAuthenticatorRevokesSentTokenOn401(t *testing.T) {
	creds := &stubCreds{token: "tok-1"}
	rt := NewAuthenticator(creds, respond(http.StatusUnauthorized))

	resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend.test/users", nil))
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response must pass through, got %d", resp.StatusCode)
	}
	if len(creds.revoked) != 1 || creds.revoked[0] != "tok-1" {
		t.Fatalf("expected revoke of sent token, got %v", creds.revoked)
	}
	if _, ok := creds.CurrentToken(); ok {
		t.Fatal("expected session ended")
	}
}

func TestAuthenticatorLeavesSessionOnOtherStatuses(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		creds := &stubCreds{token: "tok-1"}
		if _, err := NewAuthenticator(creds, respond(code)).RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend.test/x", nil)); err != nil {
			t.Fatalf("%d: RoundTrip: %v", code, err)
		}
		if len(creds.revoked) != 0 {
			t.Fatalf("%d: unexpected revoke", code)
		}
	}
}

func TestAuthenticatorPassesTransportErrors(t *testing.T) {
	boom := errors.New("connection refused")
	creds := &stubCreds{token: "tok-1"}
	rt := NewAuthenticator(creds, roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, boom }))
	if _, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://backend.test/x", nil)); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, ok := creds.CurrentToken(); !ok {
		t.Fatal("network failure must not end the session")
	}
}

func signToken(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "role": role, "exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestConcurrent401sLogOutOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}))
	defer srv.Close()

	store := tokenstore.Bind(tokenstore.NewMemory(), tokenstore.Key{Origin: "http://portal.test", Profile: "p1"})
	sess := session.New(store, auth.NewDecoder(), session.WithProfile("p1"))
	if err := sess.Login(ctx, signToken(t, "RECRUITER", time.Now().Add(time.Hour)), ""); err != nil {
		t.Fatalf("Login: %v", err)
	}
	events := sess.Watch(ctx)

	client, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	authed := client.ForSession(sess)

	var wg sync.WaitGroup
	var unauthorized atomic.Int32
	lists := []func(context.Context) error{
		func(ctx context.Context) error { _, err := authed.Candidates().List(ctx); return err },
		func(ctx context.Context) error { _, err := authed.Applications().List(ctx); return err },
		func(ctx context.Context) error { _, err := authed.Interviews().List(ctx); return err },
	}
	for _, list := range lists {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := list(ctx); errors.Is(err, auth.ErrUnauthorized) {
				unauthorized.Add(1)
			}
		}()
	}
	wg.Wait()

	if unauthorized.Load() != 3 {
		t.Fatalf("expected all three screens to see 401, got %d", unauthorized.Load())
	}
	if _, ok := sess.CurrentToken(); ok {
		t.Fatal("expected logged out")
	}
	transitions := 0
	deadline := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case <-events:
			transitions++
		case <-deadline:
			break loop
		}
	}
	if transitions != 1 {
		t.Fatalf("expected exactly one logout transition, got %d", transitions)
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/authentication/login" {
			http.NotFound(w, r)
			return
		}
		var in LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if in.UserName != "alice" || in.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-alice"})
	}))
	defer srv.Close()

	client, err := New(srv.URL + "/api/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tok, err := client.Login(context.Background(), LoginRequest{UserName: "alice", Password: "secret1"})
	if err != nil || tok != "tok-alice" {
		t.Fatalf("unexpected login result %q %v", tok, err)
	}

	_, err = client.Login(context.Background(), LoginRequest{UserName: "alice", Password: "nope"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Bad credentials" {
		t.Fatalf("expected APIError 401, got %v", err)
	}
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected 401 to match ErrUnauthorized, got %v", err)
	}
}

func TestRegisterSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var user Registration
		if err := json.Unmarshal([]byte(r.FormValue("user")), &user); err != nil {
			http.Error(w, "bad user part", http.StatusBadRequest)
			return
		}
		if user.UserName != "bob" || r.FormValue("role") != "CANDIDATE" {
			http.Error(w, "unexpected fields", http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "avatar.png" || string(data) != "png-bytes" {
			http.Error(w, "unexpected image", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	err := client.Register(context.Background(), Registration{
		UserName: "bob", UserEmail: "bob@example.com", UserPassword: "secret1", Role: "CANDIDATE",
	}, strings.NewReader("png-bytes"), "avatar.png")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestResourceCRUD(t *testing.T) {
	var (
		mu     sync.Mutex
		skills = map[string]Skill{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/skills/")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/skills":
			out := []Skill{}
			for _, s := range skills {
				out = append(out, s)
			}
			_ = json.NewEncoder(w).Encode(out)
		case r.Method == http.MethodPost && r.URL.Path == "/skills":
			var s Skill
			_ = json.NewDecoder(r.Body).Decode(&s)
			s.ID = 7
			skills["7"] = s
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(s)
		case r.Method == http.MethodGet:
			s, ok := skills[id]
			if !ok {
				http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(s)
		case r.Method == http.MethodPut:
			var s Skill
			_ = json.NewDecoder(r.Body).Decode(&s)
			s.ID = 7
			skills[id] = s
			_ = json.NewEncoder(w).Encode(s)
		case r.Method == http.MethodDelete:
			delete(skills, id)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client, _ := New(srv.URL)
	res := client.Skills()

	created, err := res.Create(ctx, Skill{Name: "go"})
	if err != nil || created.ID != 7 {
		t.Fatalf("Create: %+v %v", created, err)
	}
	if _, err := res.Update(ctx, "7", Skill{Name: "golang"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := res.Get(ctx, "7")
	if err != nil || got.Name != "golang" {
		t.Fatalf("Get: %+v %v", got, err)
	}
	list, err := res.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v %v", list, err)
	}
	if err := res.Delete(ctx, "7"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = res.Get(ctx, "7")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Message != "not found" {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		t.Fatal("404 must not match ErrUnauthorized")
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, _ := New(url, WithTimeout(time.Second))
	_, err := client.Users().List(context.Background())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api"); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, _ := New(srv.URL, WithRateLimit(0.001, 1))
	if _, err := client.Degrees().List(context.Background()); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Degrees().List(ctx)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected limiter wait to fail as NetworkError, got %v", err)
	}
}
