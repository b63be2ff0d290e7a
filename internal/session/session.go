// Package session keeps the browser's access/refresh token pair: a
// write-through cache over a cookie storage, injected explicitly into the
// API client and the session guard.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	AccessCookie  = "mad-session"
	RefreshCookie = "mad-refresh"

	// CookieMaxAge is the lifetime of both token cookies.
	CookieMaxAge = 30 * 24 * time.Hour
)

// Tokens is the short-lived access token (JWT) and the longer-lived refresh
// token issued by the backend.
type Tokens struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Storage persists named token values.
type Storage interface {
	Get(name string) (string, bool)
	Set(name, value string, maxAge time.Duration)
	Delete(name string)
}

// CookieStorage reads cookies from the request and writes Set-Cookie headers
// to the response.
type CookieStorage struct {
	r      *http.Request
	w      http.ResponseWriter
	secure bool

	mu      sync.Mutex
	written map[string]*string
}

// NewCookieStorage binds a storage to one request/response pair. secure marks
// cookies Secure (production).
func NewCookieStorage(w http.ResponseWriter, r *http.Request, secure bool) *CookieStorage {
	return &CookieStorage{r: r, w: w, secure: secure, written: make(map[string]*string)}
}

func (c *CookieStorage) Get(name string) (string, bool) {
	c.mu.Lock()
	if v, ok := c.written[name]; ok {
		c.mu.Unlock()
		if v == nil {
			return "", false
		}
		return *v, true
	}
	c.mu.Unlock()
	if c.r == nil {
		return "", false
	}
	ck, err := c.r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (c *CookieStorage) Set(name, value string, maxAge time.Duration) {
	c.mu.Lock()
	c.written[name] = &value
	c.mu.Unlock()
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *CookieStorage) Delete(name string) {
	c.mu.Lock()
	c.written[name] = nil
	c.mu.Unlock()
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// MemoryStorage is a process-local Storage for command line tools and tests.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	return v, ok && v != ""
}

func (m *MemoryStorage) Set(name, value string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

func (m *MemoryStorage) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
}

// Session is the write-through token cache. Reads hit the cache; the first
// read loads from storage.
type Session struct {
	store Storage

	mu     sync.RWMutex
	loaded bool
	tokens Tokens
}

func New(store Storage) *Session {
	return &Session{store: store}
}

// Tokens returns the cached pair, loading it from storage on first use.
func (s *Session) Tokens() Tokens {
	s.mu.RLock()
	if s.loaded {
		t := s.tokens
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.tokens.AccessToken, _ = s.store.Get(AccessCookie)
		s.tokens.RefreshToken, _ = s.store.Get(RefreshCookie)
		s.loaded = true
	}
	return s.tokens
}

func (s *Session) AccessToken() string  { return s.Tokens().AccessToken }
func (s *Session) RefreshToken() string { return s.Tokens().RefreshToken }

// SetTokens writes the pair to the cache and to storage.
func (s *Session) SetTokens(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	s.loaded = true
	s.store.Set(AccessCookie, t.AccessToken, CookieMaxAge)
	s.store.Set(RefreshCookie, t.RefreshToken, CookieMaxAge)
}

// RemoveTokens clears the cache and storage.
func (s *Session) RemoveTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	s.loaded = true
	s.store.Delete(AccessCookie)
	s.store.Delete(RefreshCookie)
}

type sessionContextKey struct{}

// ContextWithSession attaches the request session to ctx.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the session attached by ContextWithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}
