package devapi

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"recruitgate.org/internal/auth"
)

var (
	ErrNotFound      = errors.New("devapi: not found")
	ErrUserExists    = errors.New("devapi: user already exists")
	ErrBadCredential = errors.New("devapi: bad credentials")
)

type account struct {
	ID           int64
	UserName     string
	UserEmail    string
	Role         auth.Role
	PasswordHash []byte
	Image        []byte
}

type accountView struct {
	ID        int64  `json:"id"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	Role      string `json:"role"`
}

func (a *account) view() accountView {
	return accountView{ID: a.ID, UserName: a.UserName, UserEmail: a.UserEmail, Role: a.Role.Wire()}
}

// accounts holds registered users keyed by lower-cased user name.
type accounts struct {
	mu     sync.RWMutex
	cost   int
	byName map[string]*account
	nextID int64
}

func newAccounts(cost int) *accounts {
	return &accounts{cost: cost, byName: make(map[string]*account)}
}

func (s *accounts) create(userName, email, password string, role auth.Role, image []byte) (*account, error) {
	key := strings.ToLower(strings.TrimSpace(userName))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[key]; ok {
		return nil, ErrUserExists
	}
	s.nextID++
	a := &account{
		ID:           s.nextID,
		UserName:     strings.TrimSpace(userName),
		UserEmail:    strings.TrimSpace(email),
		Role:         role,
		PasswordHash: hash,
		Image:        image,
	}
	s.byName[key] = a
	return a, nil
}

func (s *accounts) authenticate(userName, password string) (*account, error) {
	s.mu.RLock()
	a, ok := s.byName[strings.ToLower(strings.TrimSpace(userName))]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBadCredential
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return nil, ErrBadCredential
	}
	return a, nil
}

func (s *accounts) list() []accountView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]accountView, 0, len(s.byName))
	for _, a := range s.byName {
		out = append(out, a.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *accounts) get(id int64) (accountView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byName {
		if a.ID == id {
			return a.view(), nil
		}
	}
	return accountView{}, ErrNotFound
}

func (s *accounts) remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, a := range s.byName {
		if a.ID == id {
			delete(s.byName, k)
			return nil
		}
	}
	return ErrNotFound
}

// collection is a schemaless record set for the non-user resources.
type collection struct {
	mu      sync.RWMutex
	records map[int64]map[string]any
	nextID  int64
}

func newCollection() *collection {
	return &collection{records: make(map[int64]map[string]any)}
}

func (c *collection) list() []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.records[id])
	}
	return out
}

func (c *collection) get(id int64) (map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (c *collection) create(rec map[string]any) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	rec["id"] = c.nextID
	c.records[c.nextID] = rec
	return rec
}

func (c *collection) update(id int64, rec map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[id]; !ok {
		return nil, ErrNotFound
	}
	rec["id"] = id
	c.records[id] = rec
	return rec, nil
}

func (c *collection) remove(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[id]; !ok {
		return ErrNotFound
	}
	delete(c.records, id)
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}
