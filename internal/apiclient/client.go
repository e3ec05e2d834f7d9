// Package apiclient is the typed REST client every portal screen shares.
// Requests made through a session-bound client carry that session's bearer
// token; a 401 answer ends the session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"recruitgate.org/internal/obs"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to the recruitment backend.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps outbound requests at perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient: base url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ForSession returns a client whose requests are authenticated by creds.
// The limiter and base transport are shared with c.
func (c *Client) ForSession(creds Credentials) *Client {
	hc := *c.http
	hc.Transport = NewAuthenticator(creds, c.http.Transport)
	clone := *c
	clone.http = &hc
	return &clone
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, in LoginRequest) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/authentication/login", bytes.NewReader(body), "application/json", &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("apiclient: login response carried no token")
	}
	return out.Token, nil
}

// Register forwards the sign-up form. image may be nil.
func (c *Client) Register(ctx context.Context, in Registration, image io.Reader, filename string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	userJSON, err := json.Marshal(in)
	if err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="user"`)
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(userJSON); err != nil {
		return err
	}

	if image != nil {
		if filename == "" {
			filename = "image"
		}
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			return err
		}
		if _, err := io.Copy(fw, image); err != nil {
			return fmt.Errorf("apiclient: read image: %w", err)
		}
	}
	if err := mw.WriteField("role", in.Role); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/authentication/register", &buf, mw.FormDataContentType(), nil)
}

func (c *Client) Users() Resource[User]               { return NewResource[User](c, "/users") }
func (c *Client) Degrees() Resource[Degree]           { return NewResource[Degree](c, "/degrees") }
func (c *Client) Skills() Resource[Skill]             { return NewResource[Skill](c, "/skills") }
func (c *Client) Candidates() Resource[Candidate]     { return NewResource[Candidate](c, "/candidates") }
func (c *Client) Applications() Resource[Application] { return NewResource[Application](c, "/applications") }
func (c *Client) Interviews() Resource[Interview]     { return NewResource[Interview](c, "/interviews") }

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkError{Op: method + " " + path, Err: err}
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = c.base.Path + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		obs.ObserveBackendRequest(0)
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	obs.ObserveBackendRequest(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
