// Package devapi is a stand-in for the recruitment REST backend, used for
// local runs of the portal and for end-to-end tests.
package devapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"recruitgate.org/internal/audit"
	"recruitgate.org/internal/auth"
	"recruitgate.org/internal/httpapi"
)

const maxImageBytes = 5 << 20

// Resources served besides /users.
var Resources = []string{"degrees", "skills", "candidates", "applications", "interviews"}

type loginRequest struct {
	UserName string `json:"userName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	UserName     string `json:"userName" validate:"required"`
	UserEmail    string `json:"userEmail" validate:"required,email"`
	UserPassword string `json:"userPassword" validate:"required,min=6"`
	Role         string `json:"role"`
}

// Server is the dev backend.
type Server struct {
	mux         *http.ServeMux
	issuer      *auth.Issuer
	validate    *validator.Validate
	users       *accounts
	collections map[string]*collection
}

// Option configures a Server.
type Option func(*Server)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.users.cost = cost
		}
	}
}

// New builds a Server signing tokens with issuer.
func New(issuer *auth.Issuer, opts ...Option) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		issuer:      issuer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		users:       newAccounts(bcrypt.DefaultCost),
		collections: make(map[string]*collection, len(Resources)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, name := range Resources {
		s.collections[name] = newCollection()
	}

	s.mux.HandleFunc("POST /authentication/login", s.handleLogin)
	s.mux.HandleFunc("POST /authentication/register", s.handleRegister)
	s.mux.Handle("GET /users", s.withAuth(http.HandlerFunc(s.listUsers)))
	s.mux.Handle("GET /users/{id}", s.withAuth(http.HandlerFunc(s.getUser)))
	s.mux.Handle("DELETE /users/{id}", s.withAuth(s.adminOnly(http.HandlerFunc(s.deleteUser))))
	s.mux.Handle("GET /{resource}", s.withAuth(http.HandlerFunc(s.listRecords)))
	s.mux.Handle("POST /{resource}", s.withAuth(http.HandlerFunc(s.createRecord)))
	s.mux.Handle("GET /{resource}/{id}", s.withAuth(http.HandlerFunc(s.getRecord)))
	s.mux.Handle("PUT /{resource}/{id}", s.withAuth(http.HandlerFunc(s.updateRecord)))
	s.mux.Handle("DELETE /{resource}/{id}", s.withAuth(http.HandlerFunc(s.deleteRecord)))
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler { return s.mux }

// Seed creates an account directly, bypassing the registration form.
func (s *Server) Seed(userName, email, password string, role auth.Role) error {
	if _, err := auth.ParseRole(role.String()); err != nil {
		return err
	}
	_, err := s.users.create(userName, email, password, role, nil)
	return err
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	acct, err := s.users.authenticate(req.UserName, req.Password)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Bad credentials")
		return
	}
	token, expiresAt, err := s.issuer.Issue(acct.UserName, acct.Role)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "devapi.token.issued", map[string]any{
		"user":       acct.UserName,
		"role":       acct.Role.String(),
		"expires_at": expiresAt,
	})
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "multipart form required")
		return
	}
	var req registerRequest
	if err := json.Unmarshal([]byte(r.FormValue("user")), &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "user part must be JSON")
		return
	}
	if role := r.FormValue("role"); role != "" {
		req.Role = role
	}
	if err := s.validate.Struct(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil || !slices.Contains(auth.RegistrationRoles(), role) {
		writeMessage(w, http.StatusBadRequest, "unknown role")
		return
	}

	var image []byte
	if f, _, err := r.FormFile("image"); err == nil {
		image, err = io.ReadAll(io.LimitReader(f, maxImageBytes))
		_ = f.Close()
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "unreadable image")
			return
		}
	}

	acct, err := s.users.create(req.UserName, req.UserEmail, req.UserPassword, role, image)
	if errors.Is(err, ErrUserExists) {
		writeMessage(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "registration failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "devapi.user.registered", map[string]any{
		"user": acct.UserName,
		"role": acct.Role.String(),
	})
	httpapi.WriteJSON(w, http.StatusCreated, acct.view())
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, s.users.list())
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err == nil {
		var v accountView
		if v, err = s.users.get(id); err == nil {
			httpapi.WriteJSON(w, http.StatusOK, v)
			return
		}
	}
	writeStoreError(w, err)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err == nil {
		err = s.users.remove(id)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) (*collection, bool) {
	c, ok := s.collections[r.PathValue("resource")]
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown resource")
	}
	return c, ok
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.collection(w, r); ok {
		httpapi.WriteJSON(w, http.StatusOK, c.list())
	}
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err == nil {
		var rec map[string]any
		if rec, err = c.get(id); err == nil {
			httpapi.WriteJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeStoreError(w, err)
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, c.create(rec))
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	out, err := c.update(id, rec)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := s.collection(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err == nil {
		err = c.remove(id)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	rec := map[string]any{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&rec); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return rec, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "not found")
		return
	}
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

// writeMessage mirrors the backend's {"message": ...} error body.
func writeMessage(w http.ResponseWriter, code int, msg string) {
	httpapi.WriteJSON(w, code, map[string]string{"message": strings.TrimSpace(msg)})
}
